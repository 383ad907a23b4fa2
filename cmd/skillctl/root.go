package main

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/mind-engage/skillway/internal/config"
	"github.com/mind-engage/skillway/internal/db"
	"github.com/mind-engage/skillway/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:          "skillway",
	Short:        "Skillway operator tooling",
	Long:         "Manage the Skillway database, accounts and curriculum uploads from the command line.",
	SilenceUsage: true,
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db-driver", "", "Database driver: sqlite or postgres (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().String("dsn", "", "Database DSN (overrides DB_DSN)")
	rootCmd.PersistentFlags().String("log-mode", "", "Logger mode: development or production (overrides LOG_MODE)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(eventsCmd)
}

// loadConfig reads the environment and applies flag overrides on top.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.FromEnv()
	if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("dsn"); v != "" {
		cfg.DBDSN = v
	}
	if v, _ := cmd.Flags().GetString("log-mode"); v != "" {
		cfg.LogMode = v
	}
	return cfg
}

// openDB opens the configured database with the schema applied.
func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	return db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
}

func newLogger(cfg config.Config) (*logger.Logger, error) {
	return logger.New(cfg.LogMode)
}
