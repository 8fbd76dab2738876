package middleware

import "sync"

// storeBreaker decides when the fallback store answers limit checks.
// It trips after tripAfter consecutive primary errors and stays tripped
// until the primary has answered resetAfter times in a row.
type storeBreaker struct {
	mu         sync.Mutex
	tripped    bool
	streak     int
	tripAfter  int
	resetAfter int
}

func newStoreBreaker(tripAfter, resetAfter int) *storeBreaker {
	return &storeBreaker{tripAfter: max(tripAfter, 1), resetAfter: max(resetAfter, 1)}
}

func (b *storeBreaker) isTripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// primaryFailed records an error and reports whether the fallback should answer.
func (b *storeBreaker) primaryFailed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tripped {
		b.streak = 0
		return true
	}
	b.streak++
	if b.streak >= b.tripAfter {
		b.tripped = true
		b.streak = 0
	}
	return b.tripped
}

// primaryAnswered records a success and reports whether the fallback should
// still answer.
func (b *storeBreaker) primaryAnswered() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tripped {
		b.streak = 0
		return false
	}
	b.streak++
	if b.streak >= b.resetAfter {
		b.tripped = false
		b.streak = 0
	}
	return b.tripped
}
