// Package transient holds per-field error messages that clear themselves after a delay.
package transient

import (
	"sync"
	"time"
)

// DefaultTimeout is how long a message stays visible.
const DefaultTimeout = 5 * time.Second

type slot struct {
	message string
	timer   *time.Timer
	gen     uint64
}

// Store keeps one independent message slot per field. Each slot owns at most
// one pending clear timer.
type Store struct {
	mu      sync.Mutex
	timeout time.Duration
	slots   map[string]*slot
	closed  bool
}

// New creates a store; a non-positive timeout selects DefaultTimeout.
func New(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{timeout: timeout, slots: make(map[string]*slot)}
}

// Set shows message in field and restarts its clear timer. An empty message
// clears the field immediately and cancels the timer.
func (s *Store) Set(field, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	sl, ok := s.slots[field]
	if !ok {
		if message == "" {
			return
		}
		sl = &slot{}
		s.slots[field] = sl
	}
	if sl.timer != nil {
		sl.timer.Stop()
		sl.timer = nil
	}
	sl.gen++
	sl.message = message
	if message == "" {
		return
	}
	gen := sl.gen
	sl.timer = time.AfterFunc(s.timeout, func() { s.expire(field, gen) })
}

// Clear dismisses the message in field.
func (s *Store) Clear(field string) { s.Set(field, "") }

func (s *Store) expire(field string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	sl, ok := s.slots[field]
	if !ok || sl.gen != gen {
		return
	}
	sl.message = ""
	sl.timer = nil
}

// Get returns the current message of field, "" when none.
func (s *Store) Get(field string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[field]; ok {
		return sl.message
	}
	return ""
}

// Snapshot returns every non-empty message keyed by field.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for field, sl := range s.slots {
		if sl.message != "" {
			out[field] = sl.message
		}
	}
	return out
}

// Pending counts the clear timers still armed.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sl := range s.slots {
		if sl.timer != nil {
			n++
		}
	}
	return n
}

// Close stops every timer. Later calls are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, sl := range s.slots {
		if sl.timer != nil {
			sl.timer.Stop()
			sl.timer = nil
		}
		sl.message = ""
	}
}
