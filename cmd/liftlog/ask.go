package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/liftlog/pkg/liftlog"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>...",
	Short: "Ask a question about your workout history",
	Long: `Ask a question such as "what's my bench press PR?". The most recent
entries are sent to the configured language model with the question.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
		answer, err := c.Ask(ctx, question)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"query":  question,
				"answer": answer,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	})
}
