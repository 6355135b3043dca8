package tasks

import (
	"errors"
	"sync"

	"github.com/desertthunder/linkport/internal/shared"
)

// Notifier receives the import loading flag and the latest error message.
type Notifier interface {
	SetLoading(loading bool)
	SetError(message string)
}

// Status is the default [Notifier]. It is safe for concurrent use.
type Status struct {
	mu      sync.RWMutex
	loading int
	err     string
}

// SetLoading counts nested imports so concurrent calls keep the flag raised
// until the last one finishes.
func (s *Status) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loading {
		s.loading++
	} else if s.loading > 0 {
		s.loading--
	}
}

func (s *Status) SetError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = message
}

// Loading reports whether an import is running.
func (s *Status) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Error returns the last failure message, or "" after a successful start.
func (s *Status) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

type nopNotifier struct{}

func (nopNotifier) SetLoading(bool) {}
func (nopNotifier) SetError(string) {}

// outcomeLabel classifies err for metrics and logs.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, shared.ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrAuthExpired):
		return "auth"
	case errors.Is(err, shared.ErrResolutionUnreachable):
		return "unreachable"
	case errors.Is(err, shared.ErrResolutionNotFound):
		return "not_found"
	default:
		return "error"
	}
}
