package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jason-s-yu/streamify/internal/database/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DB.Driver != "postgres" {
				return fmt.Errorf("migrate needs DB_DRIVER=postgres, got %q", cfg.DB.Driver)
			}
			if err := postgres.Migrate(cfg.Postgres.DSN()); err != nil {
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}
