package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"
)

const passwordCommandTimeout = 5 * time.Second

// GetPassword retrieves the database password using the following precedence:
// 1. Execute password_command if configured
// 2. Use PGPASSWORD environment variable if set
// 3. Prompt interactively for password, when interactive and stdin is a terminal
//
// An empty password with a nil error means none was found; the server may
// still accept the connection (trust or peer auth, .pgpass).
func GetPassword(passwordCommand string, interactive bool) (string, error) {
	if passwordCommand != "" {
		password, err := executePasswordCommand(passwordCommand)
		if err != nil {
			return "", fmt.Errorf("password command failed: %w", err)
		}
		return password, nil
	}

	if password, exists := os.LookupEnv("PGPASSWORD"); exists {
		return password, nil
	}

	if !interactive || !term.IsTerminal(int(syscall.Stdin)) {
		return "", nil
	}

	password, err := promptForPassword("Enter database password: ")
	if err != nil {
		return "", fmt.Errorf("interactive password prompt failed: %w", err)
	}
	return password, nil
}

// executePasswordCommand runs command with a timeout and returns its trimmed stdout.
func executePasswordCommand(command string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), passwordCommandTimeout)
	defer cancel()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", errors.New("empty password command")
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("command timed out after %s", passwordCommandTimeout)
		}
		return "", fmt.Errorf("command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	password := strings.TrimSpace(stdout.String())
	if password == "" {
		return "", errors.New("command returned empty password")
	}
	return password, nil
}

func promptForPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(os.Stderr)

	password := string(passwordBytes)
	if password == "" {
		return "", errors.New("empty password entered")
	}
	return password, nil
}
