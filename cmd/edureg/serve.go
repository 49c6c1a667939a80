package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hsche/edureg/internal/app"
	"github.com/hsche/edureg/pkg/logging"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Run the web server until interrupted.

Settings come from flags, EDUREG_* environment variables, the config file
and built-in defaults, in that order.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "Listen address")
	f.String("data-dir", ".edureg", "Directory for the archive, NATS storage and audit log")
	f.String("log-level", "info", "Log level: debug, info, warn or error")
	f.Bool("log-json", false, "Log as JSON")
	f.StringSlice("sinks", []string{"log"}, "Submission sinks: log, nats, sqlite")
	f.Duration("reset-delay", 5*time.Second, "Delay before a submitted form resets")
	f.Bool("insecure-dev", false, "Plain-HTTP cookies and any websocket origin, for local development")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	srv, err := app.NewServer(cmd.Context(), cfg, version)
	if err != nil {
		return err
	}
	logger := cfg.Logger()
	logger.Info("starting edureg",
		logging.String("version", version),
		logging.String("data_dir", cfg.DataDir),
		logging.Any("sinks", cfg.Sinks),
	)
	return srv.Run(cmd.Context())
}
