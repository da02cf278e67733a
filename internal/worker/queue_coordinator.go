// Package worker runs the background loops: draining the ingestion queue and
// periodic sync with the remote store.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hyperengineering/liftlog/internal/ingest"
	"github.com/hyperengineering/liftlog/internal/types"
)

// Drainer processes pending ingestion queue items.
type Drainer interface {
	Drain(ctx context.Context) (types.DrainResult, error)
}

// QueueCoordinator drains the ingestion queue on an interval and on demand.
type QueueCoordinator struct {
	drainer  Drainer
	interval time.Duration
	wake     chan struct{}
}

// NewQueueCoordinator creates a coordinator for the ingestion queue.
func NewQueueCoordinator(drainer Drainer, interval time.Duration) *QueueCoordinator {
	return &QueueCoordinator{
		drainer:  drainer,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Wake requests a drain without waiting for the next tick. Requests made
// while one is already queued are coalesced.
func (c *QueueCoordinator) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run starts the queue coordinator loop. It blocks until ctx is cancelled.
//
// Items left pending by a previous run are drained immediately on start.
func (c *QueueCoordinator) Run(ctx context.Context) {
	slog.Info("queue coordinator started",
		"component", "worker",
		"worker", "queue-coordinator",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("queue coordinator stopped",
				"component", "worker",
				"worker", "queue-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.drain(ctx)
		case <-c.wake:
			c.drain(ctx)
		}
	}
}

func (c *QueueCoordinator) drain(ctx context.Context) {
	res, err := c.drainer.Drain(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return // Graceful shutdown
		}
		level := slog.LevelError
		if errors.Is(err, ingest.ErrNoInterpreter) {
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "queue drain failed",
			"component", "worker",
			"worker", "queue-coordinator",
			"error", err,
		)
		return
	}

	if res.Processed > 0 || res.Failed > 0 {
		slog.Debug("queue drain cycle completed",
			"component", "worker",
			"worker", "queue-coordinator",
			"processed", res.Processed,
			"failed", res.Failed,
		)
	}
}
