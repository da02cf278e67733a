package store

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateExercise = errors.New("duplicate exercise name")
	ErrInvalidTransition = errors.New("queue item is in a terminal state")
)
