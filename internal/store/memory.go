package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process CounterStore used in tests and when no Redis
// URL is configured. Ranked queries break value ties by first-seen order.
type MemoryStore struct {
	mu    sync.Mutex
	stats map[int64]*Stats
	seen  []int64 // insertion order for tie-breaking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stats: make(map[int64]*Stats)}
}

func (s *MemoryStore) get(userID int64) *Stats {
	st, ok := s.stats[userID]
	if !ok {
		st = &Stats{}
		s.stats[userID] = st
		s.seen = append(s.seen, userID)
	}
	return st
}

func (s *MemoryStore) IncrMessages(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(userID).Messages++
	return nil
}

func (s *MemoryStore) AddVoiceSeconds(_ context.Context, userID int64, seconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(userID).VoiceSeconds += seconds
	return nil
}

func (s *MemoryStore) UserStats(_ context.Context, userID int64) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stats[userID]; ok {
		return *st, nil
	}
	return Stats{}, nil
}

func (s *MemoryStore) Top(_ context.Context, metric Metric, limit int64) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.seen))
	for _, uid := range s.seen {
		st := s.stats[uid]
		value := st.Messages
		if metric == MetricVoice {
			value = st.VoiceSeconds
		}
		if value > 0 {
			entries = append(entries, Entry{UserID: uid, Value: value})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})

	if limit > 0 && int64(len(entries)) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *MemoryStore) Close() error { return nil }
