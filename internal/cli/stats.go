package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show recorded focus time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			snap, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Today: %d min, all time: %d min over %d sessions\n", snap.TodayMinutes, snap.TotalMinutes, snap.Sessions)
			for _, day := range snap.History {
				fmt.Fprintf(out, "  %s  %4d min (quick %d, deep %d)\n", day.Date, day.Minutes(), day.QuickMinutes, day.DeepMinutes)
			}
			return nil
		},
	}
}
