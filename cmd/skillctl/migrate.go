package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		dbh, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.DBDriver, err)
		}
		defer dbh.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", cfg.DBDriver)
		return nil
	},
}
