package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/social-feed/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}

			if opts.jwtSecret == "" {
				return errors.New("JWT_SECRET (or --jwt-secret) is required; generate one with: openssl rand -hex 32")
			}

			cfg, err := opts.serverConfig()
			if err != nil {
				return err
			}

			srv, err := server.New(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("failed to create server", slog.String("error", err.Error()))
				return err
			}

			// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
			return srv.Start()
		},
	}
}
