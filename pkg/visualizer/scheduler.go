// ABOUTME: Animation frame scheduler
// ABOUTME: One-shot frame callbacks flushed by a ticker or an external tick
package visualizer

import (
	"context"
	"sync"
	"time"
)

// FrameID identifies a requested frame so it can be cancelled
type FrameID uint64

// FrameScheduler runs one-shot callbacks on the next frame tick
type FrameScheduler struct {
	mu      sync.Mutex
	nextID  FrameID
	pending map[FrameID]func(time.Time)
	order   []FrameID
}

// NewFrameScheduler creates an empty scheduler
func NewFrameScheduler() *FrameScheduler {
	return &FrameScheduler{
		pending: make(map[FrameID]func(time.Time)),
	}
}

// RequestFrame schedules fn for the next flush
func (s *FrameScheduler) RequestFrame(fn func(now time.Time)) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.pending[id] = fn
	s.order = append(s.order, id)
	return id
}

// CancelFrame drops a requested frame; unknown ids are ignored
func (s *FrameScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Pending returns the number of outstanding requests
func (s *FrameScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush runs every callback requested before the call. Callbacks that
// request another frame land in the next flush. Returns how many ran.
func (s *FrameScheduler) Flush(now time.Time) int {
	s.mu.Lock()
	order := s.order
	s.order = nil
	due := make([]func(time.Time), 0, len(order))
	for _, id := range order {
		if fn, ok := s.pending[id]; ok {
			due = append(due, fn)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	for _, fn := range due {
		fn(now)
	}
	return len(due)
}

// Run flushes at fps until ctx is cancelled
func (s *FrameScheduler) Run(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Flush(now)
		}
	}
}
