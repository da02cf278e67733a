package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/liftlog/pkg/liftlog"
)

// errSyncLocked is returned when another process holds the sync lock.
var errSyncLocked = errors.New("another sync is in progress")

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync with the remote store",
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push local changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSyncLock(cmd, func(ctx context.Context, c *liftlog.Client) error {
			res, err := c.Push(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d exercises, %d sessions, %d entries\n",
				len(res.Exercises), len(res.Sessions), len(res.Entries))
			return nil
		})
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull remote changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSyncLock(cmd, func(ctx context.Context, c *liftlog.Client) error {
			res, err := c.Pull(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d exercises, %d sessions, %d entries (%d skipped)\n",
				res.Exercises, res.Sessions, res.Entries, res.Skipped)
			return nil
		})
	},
}

func init() {
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncPullCmd)
}

// withSyncLock runs fn while holding the lock file next to the database.
// Push and pull are single-flight only within one process.
func withSyncLock(cmd *cobra.Command, fn func(ctx context.Context, c *liftlog.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, cfg, err := openClient(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Shutdown(context.Background()); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	lock := flock.New(syncLockPath(cfg.Database.Path))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring sync lock: %w", err)
	}
	if !locked {
		return errSyncLocked
	}
	defer func() { _ = lock.Unlock() }()

	return fn(ctx, client)
}

func syncLockPath(dbPath string) string {
	return dbPath + ".sync.lock"
}
