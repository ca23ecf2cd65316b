package main

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/bug-tracker/internal/app"
	"github.com/spec-kit/bug-tracker/internal/config"
)

// migrateCmd prepares the schema of the configured store.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations (Postgres) or create indexes (Mongo)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer env.close()

		// OpenStores migrates as part of connecting.
		env.cfg.Postgres.RunMigrations = true
		_, closeStores, err := app.OpenStores(cmd.Context(), env.cfg, env.logger)
		if err != nil {
			return err
		}
		closeStores()
		if env.cfg.Store.Driver == config.StoreDriverMemory {
			cmd.Println("memory store has no schema; nothing to do")
			return nil
		}
		cmd.Printf("%s schema is up to date\n", env.cfg.Store.Driver)
		return nil
	},
}
