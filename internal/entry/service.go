// Package entry edits and deletes logged entries.
package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/internal/validation"
)

// ErrEmptyPatch is returned when an update changes nothing.
var ErrEmptyPatch = errors.New("patch changes nothing")

// Store is the subset of the local store used by the service.
type Store interface {
	GetEntry(ctx context.Context, id string) (*types.Entry, error)
	UpdateEntry(ctx context.Context, id string, patch types.EntryPatch, at time.Time) (*types.Entry, error)
	DeleteEntry(ctx context.Context, id string, at time.Time) error
	ListEntriesBySession(ctx context.Context, sessionID string) ([]types.Entry, error)
}

// Syncer schedules pushes and sends recorded deletes to the remote store.
type Syncer interface {
	Schedule()
	PushDeletes(ctx context.Context) ([]string, error)
}

// Service edits entries and keeps the remote store informed.
type Service struct {
	store  Store
	syncer Syncer
	clock  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService creates an entry service. syncer may be nil.
func NewService(s Store, syncer Syncer, opts ...Option) *Service {
	svc := &Service{store: s, syncer: syncer, clock: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, id string) (*types.Entry, error) {
	return s.store.GetEntry(ctx, id)
}

// List returns a session's entries in creation order.
func (s *Service) List(ctx context.Context, sessionID string) ([]types.Entry, error) {
	return s.store.ListEntriesBySession(ctx, sessionID)
}

// Update applies patch, marks the entry dirty and schedules a push. The
// patched entry must pass validation.ValidateEntry.
func (s *Service) Update(ctx context.Context, id string, patch types.EntryPatch) (*types.Entry, error) {
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}
	current, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if verr := validation.ValidateEntry(patch.Apply(*current)); verr != nil {
		return nil, verr
	}

	updated, err := s.store.UpdateEntry(ctx, id, patch, s.clock().UTC().Truncate(time.Microsecond))
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if s.syncer != nil {
		s.syncer.Schedule()
	}
	return updated, nil
}

// Delete removes the entry locally and records the remote delete, then tries
// to send it right away. A remote failure is logged and not returned: the
// recorded delete is retried by the next push.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteEntry(ctx, id, s.clock().UTC().Truncate(time.Microsecond)); err != nil {
		return err
	}
	if s.syncer == nil {
		return nil
	}
	if _, err := s.syncer.PushDeletes(ctx); err != nil {
		slog.Warn("remote entry delete deferred",
			"component", "entry",
			"action", "delete",
			"entry_id", id,
			"error", err,
		)
		s.syncer.Schedule()
	}
	return nil
}
