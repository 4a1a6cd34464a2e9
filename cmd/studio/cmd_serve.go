package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/willibrandon/studio/internal/api"
	"github.com/willibrandon/studio/internal/app"
	"github.com/willibrandon/studio/internal/logger"
)

// newServeCmd creates the serve subcommand
func newServeCmd() *cobra.Command {
	var (
		listen    string
		logStderr bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve table API access and storage bucket endpoints:

  GET  /projects/{ref}/tables/api-access?relation_id=&schema=&table=
  POST /projects/{ref}/tables/{relationID}/api-access   {"enabled": true}
  GET  /projects/{ref}/storage/buckets/size-limit-estimate
  POST /projects/{ref}/storage/buckets/largest?confirm=true&limit_bytes=`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if logStderr {
				level := logger.LevelInfo
				if cfg.Debug {
					level = logger.LevelDebug
				}
				logger.InitWithWriter(level, os.Stderr)
			} else {
				initLogging(cfg)
			}

			services := app.NewServices(cfg, false)
			defer teardown(services)

			if listen == "" {
				listen = cfg.Server.Listen
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			handlers := api.NewHandlers(services, services.Access, services.Mutator(nil))
			return api.Serve(ctx, listen, api.NewRouter(handlers))
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default server.listen from config)")
	cmd.Flags().BoolVar(&logStderr, "log-stderr", false, "write logs to stderr instead of the log file")
	return cmd
}
