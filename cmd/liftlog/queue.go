package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/pkg/liftlog"
)

var queueStatus string

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the ingestion queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queue items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status := types.QueueStatus(queueStatus)
		switch status {
		case "", types.QueueStatusPending, types.QueueStatusParsed, types.QueueStatusFailed:
		default:
			return fmt.Errorf("unknown status %q (pending, parsed, failed)", queueStatus)
		}

		return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
			items, err := c.Queue().List(ctx, status)
			if err != nil {
				return fmt.Errorf("list queue: %w", err)
			}
			if jsonOutput {
				if items == nil {
					items = []types.QueueItem{}
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"items": items,
					"total": len(items),
				})
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}

			w := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tINPUT\tERROR")
			for _, item := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					item.ID,
					item.Status,
					item.CreatedAt.Local().Format("2006-01-02 15:04"),
					item.RawInput,
					orDash(item.Error),
				)
			}
			return w.Flush()
		})
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <item-id>",
	Short: "Queue a failed item's input again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
			item, err := c.Queue().Retry(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (retry of %s)\n", item.ID, args[0])
			return nil
		})
	},
}

func init() {
	queueListCmd.Flags().StringVar(&queueStatus, "status", "",
		"Filter by status: pending, parsed or failed")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRetryCmd)
}
