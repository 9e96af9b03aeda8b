package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ethioshop.com/app/internal/app"
	"ethioshop.com/app/internal/config"
	"ethioshop.com/app/internal/database"
	"ethioshop.com/app/internal/logging"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Create or update every table the service owns.

Examples:
  DB_DRIVER=postgres DB_DSN=postgres://... shopctl migrate
  DB_DRIVER=sqlite DB_DSN=./dev.db shopctl migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, sync := logging.New(logging.Options{Level: cfg.LogLevel, Format: "console", Service: "shopctl"})
			defer func() { _ = sync() }()

			db, err := database.Open(database.Options{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
			if err != nil {
				return err
			}
			if err := database.Migrate(db, logger, app.Models()...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables on %s\n", len(app.Models()), cfg.DBDriver)
			return nil
		},
	}
}
