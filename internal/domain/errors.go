package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a player has no session yet.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrPoolUnavailable indicates the question pool could not be loaded.
	ErrPoolUnavailable = errors.New("question pool unavailable")
	// ErrEmptyPool is returned when a pool loads fine but holds no records.
	ErrEmptyPool = errors.New("question pool is empty")
	// ErrInsufficientNames indicates too few distinct names to build four options.
	ErrInsufficientNames = errors.New("not enough distinct names for distractors")
	// ErrInvalidTransition is returned for actions the current phase does not accept.
	ErrInvalidTransition = errors.New("action not allowed in current phase")
)

// LoadError describes why a pool source could not be turned into a pool.
type LoadError struct {
	Source string
	Row    int // 0 when the failure is not tied to a row
	Err    error
}

func (e *LoadError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("load pool %s: row %d: %v", e.Source, e.Row, e.Err)
	}
	return fmt.Sprintf("load pool %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is lets callers match any LoadError against ErrPoolUnavailable.
func (e *LoadError) Is(target error) bool { return target == ErrPoolUnavailable }

// InsufficientNamesError reports the answer whose distractors could not be drawn.
type InsufficientNamesError struct {
	Answer    string
	Available int
}

func (e *InsufficientNamesError) Error() string {
	return fmt.Sprintf("%v: %q has %d candidates, need 3", ErrInsufficientNames, e.Answer, e.Available)
}

func (e *InsufficientNamesError) Is(target error) bool { return target == ErrInsufficientNames }
