package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	syncx "github.com/mind-engage/skillway/internal/sync"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the newest audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg := loadConfig(cmd)
		dbh, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()

		evs, err := syncx.NewEventRepo(dbh).List(cmd.Context(), typ, limit)
		if err != nil {
			return err
		}
		for _, e := range evs {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\t%s\n",
				e.Seq, e.CreatedAt.Format(time.RFC3339), e.Type, e.Key, e.Data)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().String("type", "", "Only show events of this type, e.g. CatalogUploaded")
	eventsCmd.Flags().Int("limit", 20, "Maximum number of events")
}
