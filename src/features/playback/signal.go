package playback

import (
	"context"
	"sync"
)

// Signal is the playback readiness gate: one permit per enqueued track.
type Signal struct {
	mu      sync.Mutex
	permits int
	wake    chan struct{}
}

func NewSignal() *Signal {
	return &Signal{wake: make(chan struct{})}
}

// Release adds a permit and wakes any waiter.
func (s *Signal) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permits++
	close(s.wake)
	s.wake = make(chan struct{})
}

// Acquire takes a permit, blocking until one is released or ctx is done.
func (s *Signal) Acquire(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.permits > 0 {
			s.permits--
			s.mu.Unlock()
			return nil
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Permits returns the number of released permits not yet acquired.
func (s *Signal) Permits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permits
}
