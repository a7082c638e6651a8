// Package scope provides a resource scope that records acquired cleanups
// (subscriptions, timers, process handles) and releases them in
// reverse-acquisition order on a single Close call.
package scope

import "sync"

// Scope accumulates cleanup functions. The zero value is ready to use.
type Scope struct {
	mu       sync.Mutex
	cleanups []func()
	closed   bool
}

// New creates a new empty scope.
func New() *Scope {
	return &Scope{}
}

// Add records a cleanup function. Adding to an already closed scope runs the
// cleanup immediately, so late registrations can't leak.
func (s *Scope) Add(fn func()) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
	s.mu.Unlock()
}

// Close runs every recorded cleanup in reverse-acquisition order. It is
// idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
