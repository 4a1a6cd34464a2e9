package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/willibrandon/studio/internal/app"
	"github.com/willibrandon/studio/internal/config"
	"github.com/willibrandon/studio/internal/logger"
)

var (
	// Version info (set by ldflags)
	version = "dev"

	// Flags
	configPath   string
	debug        bool
	projectRef   string
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "studio",
		Short: "Manage Data API access and storage limits of PostgreSQL projects",
		Long: `studio inspects and changes which tables the Data API roles (anon and
authenticated) can reach, and checks storage bucket file size limits.

Without a subcommand it opens the interactive console.

Examples:
  studio                                      Open the console
  studio api-access status --table todos      Show API access of public.todos
  studio api-access enable --relation-id 16384
  studio privileges --schema public           Show grants as a tree
  studio buckets largest --limit-bytes 50MB   Buckets above a global limit
  studio serve --listen :8080                 Serve the HTTP API`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/studio/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&projectRef, "project", "p", "", "project ref (default: default_project from config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json or yaml")

	rootCmd.AddCommand(
		newTUICmd(),
		newAPIAccessCmd(),
		newPrivilegesCmd(),
		newBucketsCmd(),
		newHistoryCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigFromPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if debug {
		cfg.Debug = true
	}
	if projectRef != "" {
		if _, ok := cfg.Project(projectRef); !ok {
			return nil, fmt.Errorf("unknown project %q (configured: %v)", projectRef, cfg.ProjectRefs())
		}
		cfg.DefaultProject = projectRef
	}
	return cfg, nil
}

// initLogging writes logs to the configured file.
func initLogging(cfg *config.Config) {
	logLevel := logger.LevelInfo
	if cfg.Debug {
		logLevel = logger.LevelDebug
	}
	logger.InitLogger(logLevel, cfg.LogFile)
	if cfg.Debug {
		fmt.Fprintf(os.Stderr, "Debug mode: Logs written to %s\n", logger.LogPath)
		logger.Debug("studio starting", "version", version, "config", configPath)
	}
}

// setup loads configuration, starts logging and wires the services. CLI
// commands may prompt for a password when stdin is a terminal.
func setup() (*config.Config, *app.Services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	initLogging(cfg)
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	return cfg, app.NewServices(cfg, interactive), nil
}

// teardown releases services and the log file.
func teardown(services *app.Services) {
	if services != nil {
		services.Close()
	}
	logger.Close()
}

var errOutputFormat = errors.New("output must be one of text, json or yaml")
