package flow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sessions keeps one Form per visitor, keyed by an opaque cookie value.
// Forms not touched for the TTL are dropped by Sweep, except while a
// submit is in flight.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]*session
	ttl     time.Duration
	newForm func() *Form
	now     func() time.Time
}

type session struct {
	form     *Form
	lastSeen time.Time
}

type SessionsOption func(*Sessions)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) {
		s.now = now
	}
}

func NewSessions(newForm func() *Form, ttl time.Duration, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		entries: make(map[string]*session),
		ttl:     ttl,
		newForm: newForm,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the form for id and refreshes its expiry.
func (s *Sessions) Get(id string) (*Form, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = s.now()
	return entry.form, true
}

// GetOrCreate returns the form for id, or a fresh form under a new id when
// id is empty or unknown. created reports whether a new session was made.
func (s *Sessions) GetOrCreate(id string) (sessionID string, form *Form, created bool) {
	if id != "" {
		if form, ok := s.Get(id); ok {
			return id, form, false
		}
	}
	sessionID = uuid.NewString()
	form = s.newForm()
	s.mu.Lock()
	s.entries[sessionID] = &session{form: form, lastSeen: s.now()}
	s.mu.Unlock()
	return sessionID, form, true
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes sessions idle since before now-TTL and returns how many.
func (s *Sessions) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.entries {
		if entry.lastSeen.After(cutoff) {
			continue
		}
		if entry.form.State() == StateSubmitting {
			continue
		}
		delete(s.entries, id)
		removed++
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}
