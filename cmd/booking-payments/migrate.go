package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"booking-payments/internal/config"
	"booking-payments/internal/database"
	"booking-payments/internal/logger"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appLogger, err := logger.New(cfg.App.LogPath, cfg.App.Debug)
			if err != nil {
				return err
			}
			defer appLogger.Sync()

			return database.MigrateUp(cfg.DB.MigrationsPath, cfg.GetDBMigrationConnectionString(), appLogger)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, err := cmd.Flags().GetInt("steps")
			if err != nil {
				return err
			}
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appLogger, err := logger.New(cfg.App.LogPath, cfg.App.Debug)
			if err != nil {
				return err
			}
			defer appLogger.Sync()

			return database.MigrateDown(cfg.DB.MigrationsPath, cfg.GetDBMigrationConnectionString(), steps, appLogger)
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}
