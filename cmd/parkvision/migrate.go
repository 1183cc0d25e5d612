package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parkvision-service/internal/config"
	"parkvision-service/internal/db"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := newLogger(cfg.Log)

			gdb, err := db.Open(cfg.Database.DSN)
			if err != nil {
				return err
			}
			if err := db.Migrate(gdb); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}
