package usecase

import (
	"sync"
	"time"
)

// SessionTimer tracks elapsed call time from a recorded start timestamp.
// Elapsed time is always now minus start, never an accumulated tick count, so
// a suspended process does not undercount.
type SessionTimer struct {
	mu      sync.Mutex
	started bool
	startAt time.Time
	now     func() time.Time
}

func NewSessionTimer() *SessionTimer {
	return &SessionTimer{now: time.Now}
}

// Start records the call start timestamp. A second Start keeps the first.
func (t *SessionTimer) Start(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	t.startAt = at
}

// Started reports whether the timer has a recorded start timestamp.
func (t *SessionTimer) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// StartedAt returns the recorded start timestamp, zero if never started.
func (t *SessionTimer) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startAt
}

// Elapsed returns whole seconds since the start timestamp, zero if never
// started.
func (t *SessionTimer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return 0
	}
	return int(t.now().Sub(t.startAt).Round(time.Second) / time.Second)
}

// Stop returns the final elapsed whole seconds. Safe to call without Start.
func (t *SessionTimer) Stop() int {
	return t.Elapsed()
}
