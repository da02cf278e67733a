// Package query answers free-text questions about the workout history.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/liftlog/internal/interpreter"
	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/internal/validation"
)

// HistoryLimit caps how many recent entries accompany a question.
const HistoryLimit = 500

// ErrUnavailable is returned when no provider can answer questions.
var ErrUnavailable = errors.New("no question answering provider configured")

// Store is the subset of the local store used by the service.
type Store interface {
	ListHistory(ctx context.Context, limit int) ([]types.HistoryEntry, error)
}

// Service answers questions from the local history.
type Service struct {
	store    Store
	answerer interpreter.Answerer
}

// NewService creates a query service. answerer may be nil, in which case
// Ask returns ErrUnavailable.
func NewService(s Store, answerer interpreter.Answerer) *Service {
	return &Service{store: s, answerer: answerer}
}

// Available reports whether questions can be answered.
func (s *Service) Available() bool {
	return s.answerer != nil
}

// Ask validates the question and answers it from the most recent entries.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	if verr := validation.ValidateQuery(question); verr != nil {
		return "", verr
	}
	if s.answerer == nil {
		return "", ErrUnavailable
	}

	history, err := s.store.ListHistory(ctx, HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	answer, err := s.answerer.Answer(ctx, question, history)
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	slog.Debug("question answered", "component", "query", "history", len(history))
	return answer, nil
}
