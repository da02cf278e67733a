package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/liftlog/pkg/liftlog"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store counters, sign-in state and last pull",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
			status, err := c.Status(ctx, Version)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), status)
			}

			user := "signed out"
			if status.Authenticated {
				user = c.UserID()
			}
			lastPull := "never"
			if status.LastPull != nil {
				lastPull = status.LastPull.Local().Format("2006-01-02 15:04:05")
			}

			w := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintf(w, "Version:\t%s\n", status.Version)
			fmt.Fprintf(w, "User:\t%s\n", user)
			fmt.Fprintf(w, "Interpreter:\t%s\n", status.Interpreter)
			fmt.Fprintf(w, "Sync:\t%v\n", c.SyncEnabled())
			fmt.Fprintf(w, "Last pull:\t%s\n", lastPull)
			fmt.Fprintf(w, "Exercises:\t%d\n", status.Stats.Exercises)
			fmt.Fprintf(w, "Sessions:\t%d (%d unsynced)\n", status.Stats.Sessions, status.Stats.DirtySessions)
			fmt.Fprintf(w, "Entries:\t%d (%d unsynced)\n", status.Stats.Entries, status.Stats.DirtyEntries)
			fmt.Fprintf(w, "Queue:\t%d pending, %d failed\n", status.Stats.PendingQueue, status.Stats.FailedQueue)
			return w.Flush()
		})
	},
}
