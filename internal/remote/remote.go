// Package remote talks to the hosted replica of the local store.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
)

var (
	// ErrUnauthorized is returned when the remote rejects the credentials.
	ErrUnauthorized = errors.New("remote rejected credentials")
	// ErrStatus is wrapped by every unexpected HTTP status.
	ErrStatus = errors.New("unexpected remote status")
)

// StatusError carries the status and body of a failed remote request.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Store is the remote replica. Upserts are keyed by id. The Since queries
// return records changed strictly after cursor; a zero cursor returns all.
type Store interface {
	UpsertExercises(ctx context.Context, exercises []types.Exercise) error
	UpsertSessions(ctx context.Context, sessions []types.Session) error
	UpsertEntries(ctx context.Context, entries []types.Entry) error

	ExercisesSince(ctx context.Context, cursor time.Time) ([]types.Exercise, error)
	SessionsSince(ctx context.Context, cursor time.Time) ([]types.Session, error)
	EntriesSince(ctx context.Context, cursor time.Time) ([]types.Entry, error)

	DeleteEntry(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
}

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	AccessToken() (string, error)
}
