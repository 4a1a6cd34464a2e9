package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/willibrandon/studio/internal/app"
)

// newTUICmd creates the tui subcommand
func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive console (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI()
		},
	}
}

// runTUI runs the console. Passwords are never prompted for because the
// terminal belongs to the console.
func runTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)

	services := app.NewServices(cfg, false)
	defer teardown(services)

	model, err := app.New(cfg, services)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running program: %w", err)
	}

	switch m := finalModel.(type) {
	case app.Model:
		m.Cleanup()
	case *app.Model:
		m.Cleanup()
	}
	return nil
}
