package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/pkg/liftlog"
)

var (
	sessionsDate string
	sessionsAll  bool
	deleteForce  bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Review and manage workout sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions for a day",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsEndCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End an active session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
			sess, err := c.Sessions().GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			if !sess.Active() {
				return fmt.Errorf("session %s already ended", sess.ID)
			}
			ended, err := c.Sessions().EndSession(ctx, sess.ID)
			if err != nil {
				return err
			}
			return printSession(cmd, ended, "Ended")
		})
	},
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <session-id> <name>",
	Short: "Rename a session",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(strings.Join(args[1:], " "))
		if name == "" {
			return fmt.Errorf("name cannot be empty")
		}
		return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
			sess, err := c.Sessions().UpdateSession(ctx, args[0], types.SessionPatch{Name: &name})
			if err != nil {
				return err
			}
			return printSession(cmd, sess, "Renamed")
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its entries",
	Long:  "Permanently delete a session and all its entries from the local store. Requires --force or interactive confirmation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsDate, "date", "",
		`Day to list: YYYY-MM-DD or a phrase like "yesterday" (default today)`)
	sessionsListCmd.Flags().BoolVar(&sessionsAll, "all", false,
		"List sessions of every day")
	sessionsDeleteCmd.Flags().BoolVar(&deleteForce, "force", false,
		"Skip confirmation prompt")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsEndCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, cfg, err := openClient(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Shutdown(context.Background())

	date := ""
	if !sessionsAll {
		loc, err := cfg.Sync.Location()
		if err != nil {
			return err
		}
		if date, err = parseDate(sessionsDate, time.Now().In(loc)); err != nil {
			return err
		}
	}

	sessions, err := client.Sessions().ListSessions(ctx, date)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if jsonOutput {
		if sessions == nil {
			sessions = []types.Session{}
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"date":     date,
			"sessions": sessions,
			"total":    len(sessions),
		})
	}

	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tDATE\tNAME\tSTARTED\tSTATUS\tSYNCED")
	for _, s := range sessions {
		status := "active"
		if !s.Active() {
			status = "ended"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n",
			s.ID,
			s.Date,
			s.Name,
			s.StartedAt.Local().Format("15:04"),
			status,
			s.Synced,
		)
	}
	return w.Flush()
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
		sess, err := c.Sessions().GetSession(ctx, id)
		if err != nil {
			return err
		}

		// Interactive confirmation unless --force
		if !deleteForce {
			errOut := cmd.ErrOrStderr()
			fmt.Fprintf(errOut, "WARNING: This will permanently delete session %q (%s, %s) and its entries.\n",
				sess.ID, sess.Name, sess.Date)
			fmt.Fprint(errOut, "Type the session ID to confirm: ")

			reader := bufio.NewReader(cmd.InOrStdin())
			input, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read confirmation: %w", err)
			}
			if strings.TrimSpace(input) != sess.ID {
				fmt.Fprintln(errOut, "Aborted. Session ID did not match.")
				return nil
			}
		}

		removed, err := c.Sessions().DeleteSession(ctx, sess.ID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"id":              sess.ID,
				"deleted":         true,
				"entries_deleted": removed,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %q and %d entries\n", sess.ID, removed)
		return nil
	})
}

func printSession(cmd *cobra.Command, sess *types.Session, verb string) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), sess)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s session %s (%s)\n", verb, sess.ID, sess.Name)
	return nil
}
