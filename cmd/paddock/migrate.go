package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/database"
	"github.com/yourusername/paddock/internal/repository"
)

var migrateSeed bool

func init() {
	migrateCmd.Flags().BoolVar(&migrateSeed, "seed-roster", true, "Store the configured roster when none exists")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the storage schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var store repository.Store
		switch cfg.Storage.Driver {
		case config.StoragePostgres:
			db, err := database.NewDB(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return err
			}
			store = repository.NewPostgresStore(db)
		case config.StorageSQLite:
			s, err := repository.OpenSQLite(cfg.Storage.SQLitePath)
			if err != nil {
				return err
			}
			store = s
		default:
			appLog.WithField("driver", cfg.Storage.Driver).Info("Storage driver has no schema")
			return nil
		}
		defer store.Close()

		appLog.WithField("driver", cfg.Storage.Driver).Info("Schema applied")
		if migrateSeed {
			return seedRoster(ctx, store, rosterConfig(cfg), appLog)
		}
		return nil
	},
}
