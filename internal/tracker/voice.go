package tracker

import (
	"sync"
	"time"
)

type voiceSession struct {
	channel string
	start   time.Time
}

// VoiceSessions maps users to their open voice session: the channel they
// joined and the start instant. At most one session per user; joins
// overwrite, unmatched leaves are dropped. Join/leave pairs may arrive
// without guaranteed prior state (restarts, duplicate delivery), so both
// sides tolerate missing or stale entries.
type VoiceSessions struct {
	mu   sync.Mutex
	open map[int64]voiceSession
}

func NewVoiceSessions() *VoiceSessions {
	return &VoiceSessions{open: make(map[int64]voiceSession)}
}

// Join opens a session for the user in the given channel, overwriting any
// stale prior start.
func (v *VoiceSessions) Join(userID int64, channel string, at time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.open[userID] = voiceSession{channel: channel, start: at}
}

// Leave consumes the user's open session and returns the elapsed time floored
// to whole seconds, clamped at zero. Without an open session it returns false
// and mutates nothing.
func (v *VoiceSessions) Leave(userID int64, at time.Time) (time.Duration, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s, ok := v.open[userID]
	if !ok {
		return 0, false
	}
	delete(v.open, userID)

	return clampElapsed(s.start, at), true
}

// DrainChannel consumes every open session in the given channel, returning
// the elapsed time per user. Used when a whole voice chat ends at once.
func (v *VoiceSessions) DrainChannel(channel string, at time.Time) map[int64]time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()

	drained := make(map[int64]time.Duration)
	for userID, s := range v.open {
		if s.channel != channel {
			continue
		}
		delete(v.open, userID)
		drained[userID] = clampElapsed(s.start, at)
	}
	return drained
}

// Open reports the number of currently open sessions.
func (v *VoiceSessions) Open() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.open)
}

func clampElapsed(start, end time.Time) time.Duration {
	elapsed := end.Sub(start).Truncate(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}
