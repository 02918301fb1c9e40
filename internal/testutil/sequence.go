package testutil

import "sync"

// Sequence hands out increasing ids for rows a test adds to a world.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

// NewSequence creates a sequence whose first Next returns after+1.
func NewSequence(after int64) *Sequence {
	return &Sequence{last: after}
}

// Next increments and returns the next id.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Current returns the last id handed out without incrementing.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Reset restarts the sequence after the given id.
func (s *Sequence) Reset(after int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = after
}
