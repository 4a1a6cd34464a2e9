package app

import (
	"fmt"
	"strings"
)

// connectionHint maps substrings of a connection failure to a headline and
// the steps worth trying for it. The first matching hint wins.
type connectionHint struct {
	match    []string
	headline string
	steps    []string
}

var connectionHints = []connectionHint{
	{
		match:    []string{"password authentication failed", "authentication failed"},
		headline: "Authentication failed for the project's database user.",
		steps: []string{
			"Check the user and password in the project's connection_string",
			"Check password_command for this project or the connection section",
			"Unset PGPASSWORD if it holds a password for another project",
		},
	},
	{
		match:    []string{"connection refused"},
		headline: "The database is not accepting connections.",
		steps: []string{
			"Check that the project is running and not paused",
			"Check host and port in the project's connection_string",
			"Try the connection pooler port if the direct port is blocked",
		},
	},
	{
		match:    []string{"no such host", "unknown host"},
		headline: "The database host could not be resolved.",
		steps: []string{
			"Check the host in the project's connection_string",
			"Check DNS resolution for the host",
		},
	},
	{
		match:    []string{"timeout", "deadline exceeded"},
		headline: "The database did not answer in time.",
		steps: []string{
			"Check network access to the project",
			"Check that the project is not overloaded or restarting",
		},
	},
	{
		match:    []string{"SSL", "TLS"},
		headline: "The secure connection could not be established.",
		steps: []string{
			"Set sslmode=require in the connection string",
			"Check whether the server only accepts SSL connections",
		},
	},
	{
		match:    []string{"does not exist"},
		headline: "The database or role named in the connection string does not exist.",
		steps: []string{
			"Check the database name and user in the project's connection_string",
		},
	},
	{
		match:    []string{"permission denied"},
		headline: "The user may not connect to this database.",
		steps: []string{
			"Grant CONNECT on the database to the user",
			"Connect as a role that can read pg_class and storage.buckets",
		},
	},
}

// FormatConnectionError formats a connection error with actionable guidance
func FormatConnectionError(err error) string {
	msg := err.Error()
	for _, hint := range connectionHints {
		for _, m := range hint.match {
			if strings.Contains(msg, m) {
				return renderHint(hint.headline, "", hint.steps, msg)
			}
		}
	}
	return fmt.Sprintf("Database connection error:\n\n%s\n\n"+
		"Check the projects section of config.yaml or the STUDIO_ environment variables.\n"+
		"Run with --debug for detailed logs.", msg)
}

// FormatPasswordCommandError formats a password_command failure
func FormatPasswordCommandError(err error, command string) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "timed out"):
		return renderHint("The password command timed out.", command, []string{
			"Unlock the password manager",
			"Make sure the command does not wait for input",
		}, msg)
	case strings.Contains(msg, "not found"):
		return renderHint("The password command was not found.", command, []string{
			"Use an absolute path or check PATH",
		}, msg)
	}
	return renderHint("The password command failed.", command, []string{
		"Run it in a shell and check its output: " + command,
	}, msg)
}

func renderHint(headline, command string, steps []string, cause string) string {
	var b strings.Builder
	b.WriteString(headline)
	b.WriteString("\n\n")
	if command != "" {
		fmt.Fprintf(&b, "Command: %s\n\n", command)
	}
	b.WriteString("Try:\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}
	fmt.Fprintf(&b, "\nError: %s", cause)
	return b.String()
}
