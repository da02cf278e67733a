package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/liftlog/pkg/liftlog"
)

var loginCmd = &cobra.Command{
	Use:   "login [access-token]",
	Short: "Sign in with a remote store access token",
	Long: `Sign in with a remote store access token. The token is read from stdin
when no argument is given. Local sessions and entries without an owner are
claimed for the signed-in user.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
			if err := c.SignOut(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		})
	},
}

func runLogin(cmd *cobra.Command, args []string) error {
	token := ""
	if len(args) == 1 {
		token = args[0]
	} else {
		fmt.Fprint(cmd.ErrOrStderr(), "Access token: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = line
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("access token cannot be empty")
	}

	return withClient(cmd, func(ctx context.Context, c *liftlog.Client) error {
		if err := c.SignIn(ctx, token); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"user_id":       c.UserID(),
				"authenticated": true,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", c.UserID())
		return nil
	})
}
