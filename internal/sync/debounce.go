package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
)

// Schedule arms the debounce timer, restarting it if already armed. When it
// fires, a push runs in the background; its errors are logged and dropped.
func (e *Engine) Schedule() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.stopTimerLocked()
	gen := e.gen
	e.timer = time.AfterFunc(e.debounce, func() { e.runScheduled(gen) })
}

// Pending reports whether a scheduled push has not fired yet.
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timer != nil
}

// Flush cancels any scheduled push and pushes now.
func (e *Engine) Flush(ctx context.Context) (types.PushResult, error) {
	e.mu.Lock()
	e.stopTimerLocked()
	e.mu.Unlock()
	return e.Push(ctx)
}

// Close cancels any scheduled push and stops accepting new ones.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.stopTimerLocked()
}

// stopTimerLocked stops the armed timer. Bumping gen also neutralizes a
// timer that already fired but has not yet taken the lock.
func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
}

func (e *Engine) runScheduled(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.closed {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), scheduledPushTimeout)
	defer cancel()

	if _, err := e.Push(ctx); err != nil {
		slog.Warn("scheduled push failed",
			"component", "sync",
			"action", "push",
			"error", err,
		)
	}
}
