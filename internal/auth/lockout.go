package auth

import (
	"sync"
	"time"
)

// lockoutTracker counts consecutive failed code submissions per account
// inside a decaying window. All mutation happens under one mutex so two
// parallel submissions cannot both pass under the threshold.
type lockoutTracker struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	now       func() time.Time
	entries   map[string]*lockoutEntry
}

type lockoutEntry struct {
	failures  int
	firstFail time.Time
	lockedAt  time.Time
}

func newLockoutTracker(threshold int, window time.Duration, now func() time.Time) *lockoutTracker {
	return &lockoutTracker{
		threshold: threshold,
		window:    window,
		now:       now,
		entries:   make(map[string]*lockoutEntry),
	}
}

// Locked reports whether the account is currently locked out. Locks expire
// after one full window, as do stale failure counts.
func (t *lockoutTracker) Locked(accountID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[accountID]
	if e == nil {
		return false
	}
	now := t.now()
	if !e.lockedAt.IsZero() {
		if now.Sub(e.lockedAt) >= t.window {
			delete(t.entries, accountID)
			return false
		}
		return true
	}
	if now.Sub(e.firstFail) >= t.window {
		delete(t.entries, accountID)
	}
	return false
}

// Fail records one failed submission and reports whether it tripped the
// lockout threshold.
func (t *lockoutTracker) Fail(accountID string) (locked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	e := t.entries[accountID]
	if e == nil || now.Sub(e.firstFail) >= t.window {
		e = &lockoutEntry{firstFail: now}
		t.entries[accountID] = e
	}
	e.failures++
	if e.failures >= t.threshold {
		e.lockedAt = now
		return true
	}
	return false
}

// Reset clears the failure history after a successful verification.
func (t *lockoutTracker) Reset(accountID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, accountID)
}
