/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/cinevault/apiserver/config"
	"github.com/cinevault/apiserver/internal/db"
	"github.com/cinevault/apiserver/internal/logging"
	"github.com/spf13/cobra"
)

var migrationsDir string

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run Postgres schema migrations",
	Long: `Applies or rolls back the SQL migrations under internal/db/migrations.
Other database drivers create their indexes on startup and need no migrations.

	cinevault migrate up
	cinevault migrate down
`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(0)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(-1)
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "internal/db/migrations", "migrations directory")
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigration(steps int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Driver != config.DriverPostgres {
		logging.Info().Str("driver", cfg.Database.Driver).Msg("migrations only apply to postgres, nothing to do")
		return nil
	}

	version, dirty, err := db.Migrate(cfg.Database, "file://"+migrationsDir, steps)
	if err != nil {
		return err
	}
	logging.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	return nil
}
