// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"errors"
	"io"
	"sync"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// Stack collects closers and closes them in reverse order of registration.
// The zero value is ready to use. Safe for concurrent use.
type Stack struct {
	mu      sync.Mutex
	closers []io.Closer
	closed  bool
}

// Push registers c. Nil closers are ignored. Pushing after Close closes c
// immediately.
func (s *Stack) Push(c io.Closer) {
	if c == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = c.Close()
		return
	}
	s.closers = append(s.closers, c)
	s.mu.Unlock()
}

// PushFunc registers fn as a closer.
func (s *Stack) PushFunc(fn func() error) {
	if fn != nil {
		s.Push(closerFunc(fn))
	}
}

// Close closes every registered closer, last first, and joins their errors.
// Subsequent calls return nil.
func (s *Stack) Close() error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
