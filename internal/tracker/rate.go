package tracker

import (
	"sync"
	"time"
)

const (
	// rateWindow is how far back a message still counts toward the flood check.
	rateWindow = 10 * time.Second
	// rateThreshold is the window size at which a user is flagged.
	rateThreshold = 5
)

// RateWindow keeps a per-user sliding window of recent message timestamps and
// flags users that exceed the flood threshold. The window is evaluated against
// the event's own timestamp, not wall clock, so replayed sequences are
// deterministic.
type RateWindow struct {
	mu      sync.Mutex
	history map[int64][]time.Time
}

func NewRateWindow() *RateWindow {
	return &RateWindow{history: make(map[int64][]time.Time)}
}

// RecordAndCheck appends at to the user's window, purges entries at or before
// at-10s, and reports whether the window now holds at least 5 entries.
// Flagging is derived from the window; it does not reset it.
func (r *RateWindow) RecordAndCheck(userID int64, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := at.Add(-rateWindow)
	fresh := r.history[userID][:0]
	for _, t := range r.history[userID] {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	fresh = append(fresh, at)
	r.history[userID] = fresh

	return len(fresh) >= rateThreshold
}

// Len reports the current window size for a user.
func (r *RateWindow) Len(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history[userID])
}

// Sweep drops users whose entire window is older than now-10s, bounding the
// map for users seen once and never again.
func (r *RateWindow) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-rateWindow)
	removed := 0
	for uid, ts := range r.history {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(r.history, uid)
			removed++
		}
	}
	return removed
}
