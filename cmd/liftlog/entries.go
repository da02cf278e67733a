package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/pkg/liftlog"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Review and delete logged entries",
}

var entriesListCmd = &cobra.Command{
	Use:   "list <session-id>",
	Short: "List the entries of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
			if _, err := c.Sessions().GetSession(ctx, args[0]); err != nil {
				return err
			}
			entries, err := c.Entries().List(ctx, args[0])
			if err != nil {
				return fmt.Errorf("list entries: %w", err)
			}
			if jsonOutput {
				if entries == nil {
					entries = []types.Entry{}
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"session_id": args[0],
					"entries":    entries,
					"total":      len(entries),
				})
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No entries found.")
				return nil
			}

			w := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tEXERCISE\tLOAD\tLOGGED\tNOTES")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.ID,
					e.ExerciseID,
					formatLoad(e),
					e.CreatedAt.Local().Format("15:04"),
					orDash(e.Notes),
				)
			}
			return w.Flush()
		})
	},
}

var entriesDeleteCmd = &cobra.Command{
	Use:   "delete <entry-id>",
	Short: "Delete an entry locally and from the remote store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
			if err := c.Entries().Delete(ctx, args[0]); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"id":      args[0],
					"deleted": true,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %q\n", args[0])
			return nil
		})
	},
}

func init() {
	entriesCmd.AddCommand(entriesListCmd)
	entriesCmd.AddCommand(entriesDeleteCmd)
}
