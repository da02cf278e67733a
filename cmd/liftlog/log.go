package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/liftlog/pkg/liftlog"
)

var logNow bool

var logCmd = &cobra.Command{
	Use:   "log <text>...",
	Short: "Queue a free-text workout note",
	Long: `Queue a free-text workout note such as "bench 80kg 8x3, pullups 10".
The note is stored immediately and interpreted by the queue worker.
Use --now to interpret it before returning.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLog,
}

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Interpret every pending queue item now",
	Args:  cobra.NoArgs,
	RunE:  runDrain,
}

func init() {
	logCmd.Flags().BoolVar(&logNow, "now", false,
		"Interpret the queue before returning")
}

func runLog(cmd *cobra.Command, args []string) error {
	input := strings.Join(args, " ")
	return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
		item, err := c.Log(ctx, input)
		if err != nil {
			return err
		}
		if !logNow {
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", item.ID)
			return nil
		}

		res, err := c.Drain(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"item":  item,
				"drain": res,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued %s; processed %d, failed %d\n", item.ID, res.Processed, res.Failed)
		return nil
	})
}

func runDrain(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
		res, err := c.Drain(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Processed %d, failed %d\n", res.Processed, res.Failed)
		return nil
	})
}
