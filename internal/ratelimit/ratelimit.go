// Package ratelimit implements per-identity sliding-window admission control.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is the trailing duration over which requests are counted.
	DefaultWindow = 60 * time.Second

	// DefaultLimit is how many requests one identity may make per window.
	DefaultLimit = 10
)

// Limiter tracks recent request timestamps per identity. Denied requests are
// not recorded, so a flooding identity does not extend its own lockout.
//
// The set of identities grows for the process lifetime; individual windows
// are right-sized on that identity's next request. Time is passed in
// explicitly so tests control the clock.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	records map[string][]time.Time
}

// NewLimiter creates a limiter with the given window and per-window limit.
// Non-positive values fall back to the defaults.
func NewLimiter(window time.Duration, limit int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Limiter{
		window:  window,
		limit:   limit,
		records: make(map[string][]time.Time),
	}
}

// Admit reports whether identity may make a request at now, recording the
// request when admitted. Timestamps older than now − window are discarded
// before counting.
func (l *Limiter) Admit(identity string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	recent := l.records[identity][:0]
	for _, ts := range l.records[identity] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.limit {
		l.records[identity] = recent
		return false
	}

	l.records[identity] = append(recent, now)
	return true
}
