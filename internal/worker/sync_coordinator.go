package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
)

// Syncer pushes local changes and pulls remote ones.
type Syncer interface {
	Push(ctx context.Context) (types.PushResult, error)
	Pull(ctx context.Context) (types.PullResult, error)
}

// SyncCoordinator runs push then pull on an interval.
type SyncCoordinator struct {
	syncer   Syncer
	interval time.Duration
}

// NewSyncCoordinator creates a coordinator for periodic sync.
func NewSyncCoordinator(syncer Syncer, interval time.Duration) *SyncCoordinator {
	return &SyncCoordinator{
		syncer:   syncer,
		interval: interval,
	}
}

// Run starts the sync coordinator loop. It blocks until ctx is cancelled.
//
// Unlike QueueCoordinator this waits for the first tick: the client pulls once
// during startup, so an immediate cycle would repeat that work.
func (c *SyncCoordinator) Run(ctx context.Context) {
	slog.Info("sync coordinator started",
		"component", "worker",
		"worker", "sync-coordinator",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync coordinator stopped",
				"component", "worker",
				"worker", "sync-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.syncOnce(ctx)
		}
	}
}

// syncOnce pushes then pulls. A failed push does not prevent the pull.
// Returns true when both succeeded.
func (c *SyncCoordinator) syncOnce(ctx context.Context) bool {
	start := time.Now()
	ok := true

	pushed, err := c.syncer.Push(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false // Graceful shutdown
		}
		slog.Warn("periodic push failed",
			"component", "worker",
			"worker", "sync-coordinator",
			"error", err,
		)
		ok = false
	}

	pulled, err := c.syncer.Pull(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		slog.Warn("periodic pull failed",
			"component", "worker",
			"worker", "sync-coordinator",
			"error", err,
		)
		ok = false
	}

	slog.Debug("sync cycle completed",
		"component", "worker",
		"worker", "sync-coordinator",
		"sessions_pushed", len(pushed.Sessions),
		"entries_pushed", len(pushed.Entries),
		"merged", pulled.Merged(),
		"skipped", pulled.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ok
}
