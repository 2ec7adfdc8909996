package store

import "context"

// Metric selects which counter a ranked query is ordered by.
type Metric string

const (
	MetricMessages Metric = "messages"
	MetricVoice    Metric = "voice"
)

// Entry is one row of a ranked query.
type Entry struct {
	UserID int64
	Value  int64
}

// Stats holds a single user's cumulative counters.
type Stats struct {
	Messages     int64
	VoiceSeconds int64
}

// CounterStore is the persistent per-user counter boundary. Each call is
// individually atomic; no cross-call transactions are required of callers.
type CounterStore interface {
	IncrMessages(ctx context.Context, userID int64) error
	AddVoiceSeconds(ctx context.Context, userID int64, seconds int64) error
	UserStats(ctx context.Context, userID int64) (Stats, error)
	// Top returns up to limit entries ordered descending by the metric's value.
	Top(ctx context.Context, metric Metric, limit int64) ([]Entry, error)
	Close() error
}
