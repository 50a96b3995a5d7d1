package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushroster/rushroster-cloud/internal/repository"
	"github.com/rushroster/rushroster-cloud/internal/service"
)

func StatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Global statistics",
	}

	statsCmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Recompute the global statistics snapshot now",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, err := openMigrated()
			if err != nil {
				return err
			}
			defer database.Close()

			stats := service.NewStatsService(repository.NewStatsRepository(database))
			snapshot, err := stats.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "devices:        %d (%d shared)\n", snapshot.TotalDevices, snapshot.CommunityDevices)
			fmt.Fprintf(out, "events:         %d (%d speeding)\n", snapshot.TotalEvents, snapshot.SpeedingEvents)
			fmt.Fprintf(out, "last 24 hours:  %d (%d speeding)\n", snapshot.RecentEvents24h, snapshot.RecentSpeeding24h)
			return nil
		},
	})

	return statsCmd
}
