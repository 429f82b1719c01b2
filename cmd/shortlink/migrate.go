package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zhejian/shortlink/internal/observability"
	"github.com/zhejian/shortlink/internal/server"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg.Observability.Environment, cfg.Observability.LogLevel)

			if err := server.Migrate(cmd.Context(), cfg); err != nil {
				return err
			}
			logger.Info("migrations applied", slog.String("driver", cfg.Database.Driver))
			return nil
		},
	}
	cmd.Flags().String("driver", "", "store driver: postgres or sqlite (overrides DB_DRIVER)")
	return cmd
}
