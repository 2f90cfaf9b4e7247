package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches any NotFoundError via errors.Is
	ErrNotFound = errors.New("not found")
	// ErrValidation matches any ValidationError via errors.Is
	ErrValidation = errors.New("validation failed")
	// ErrPersistence matches any PersistenceError via errors.Is
	ErrPersistence = errors.New("persistence failure")
)

// NotFoundError reports a referenced game or player-in-game that does not exist
type NotFoundError struct {
	Entity string // "game" or "player"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewGameNotFound builds the error returned when a game id is unknown
func NewGameNotFound(gameID string) error {
	return &NotFoundError{Entity: "game", ID: gameID}
}

// NewPlayerNotFound builds the error returned when a user has no entry in a game
func NewPlayerNotFound(gameID string, userID int64) error {
	return &NotFoundError{Entity: "player", ID: fmt.Sprintf("%d in game %s", userID, gameID)}
}

// ValidationError reports malformed input or a rejected state transition
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for a field
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError reports a failed durable read or write
type PersistenceError struct {
	Op  string // "init", "load" or "save"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NewPersistenceError wraps err unless it already is a PersistenceError
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
