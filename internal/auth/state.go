// Package auth tracks whether the client holds a usable access token and who
// it belongs to.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid access token")
	ErrMissingSubject = errors.New("access token has no subject")
	ErrTokenExpired   = errors.New("access token expired")
)

// SignInFunc is called when the state moves into authenticated for a user.
type SignInFunc func(ctx context.Context, userID string)

// State holds the current access token. Signatures are not verified here:
// the remote store verifies every request, and the client only needs the
// subject and expiry.
type State struct {
	clock func() time.Time

	mu        sync.RWMutex
	token     string
	userID    string
	expiresAt time.Time
	listeners []SignInFunc
}

// NewState creates an unauthenticated state.
func NewState(clock func() time.Time) *State {
	if clock == nil {
		clock = time.Now
	}
	return &State{clock: clock}
}

// OnSignIn registers fn to run on every sign-in transition.
func (s *State) OnSignIn(fn SignInFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetToken installs an access token. Listeners run synchronously when the
// state was unauthenticated or belonged to a different user.
func (s *State) SetToken(ctx context.Context, token string) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return ErrMissingSubject
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
		if !s.clock().Before(expiresAt) {
			return ErrTokenExpired
		}
	}

	s.mu.Lock()
	wasUser := ""
	if s.authenticatedLocked() {
		wasUser = s.userID
	}
	s.token = token
	s.userID = claims.Subject
	s.expiresAt = expiresAt
	listeners := append([]SignInFunc(nil), s.listeners...)
	s.mu.Unlock()

	if wasUser == claims.Subject {
		return nil
	}

	slog.Info("signed in",
		"component", "auth",
		"user_id", claims.Subject,
	)
	for _, fn := range listeners {
		fn(ctx, claims.Subject)
	}
	return nil
}

// Clear signs out.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.userID = ""
	s.expiresAt = time.Time{}
}

// IsAuthenticated reports whether a token is present and unexpired.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticatedLocked()
}

// UserID returns the current user, or "" when not authenticated.
func (s *State) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticatedLocked() {
		return ""
	}
	return s.userID
}

// AccessToken returns the current token for remote requests.
func (s *State) AccessToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrInvalidToken
	}
	if !s.authenticatedLocked() {
		return "", ErrTokenExpired
	}
	return s.token, nil
}

func (s *State) authenticatedLocked() bool {
	if s.token == "" {
		return false
	}
	return s.expiresAt.IsZero() || s.clock().Before(s.expiresAt)
}
