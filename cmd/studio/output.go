package main

import (
	"encoding/json"
	"os"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	bold    = color.New(color.Bold)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
	warning = color.New(color.FgYellow)
	muted   = color.New(color.FgHiBlack)
)

// render writes v as JSON or YAML, or calls text for the human format.
func render(v any, text func()) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "text", "":
		text()
		return nil
	default:
		return errOutputFormat
	}
}

// yesNo renders a boolean as a colored word.
func yesNo(b bool) string {
	if b {
		return success.Sprint("yes")
	}
	return failure.Sprint("no")
}
