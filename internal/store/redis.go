package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	keyMessages = "chatpulse:messages"
	keyVoice    = "chatpulse:voice"
)

// RedisStore keeps counters in two sorted sets keyed by user id, so ranked
// queries are a single ZREVRANGE.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection before use.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("component", "store").Msg("connected to redis")
	return &RedisStore{client: client}, nil
}

func metricKey(metric Metric) string {
	if metric == MetricVoice {
		return keyVoice
	}
	return keyMessages
}

func (s *RedisStore) IncrMessages(ctx context.Context, userID int64) error {
	member := strconv.FormatInt(userID, 10)
	if err := s.client.ZIncrBy(ctx, keyMessages, 1, member).Err(); err != nil {
		return fmt.Errorf("incr messages for %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) AddVoiceSeconds(ctx context.Context, userID int64, seconds int64) error {
	member := strconv.FormatInt(userID, 10)
	if err := s.client.ZIncrBy(ctx, keyVoice, float64(seconds), member).Err(); err != nil {
		return fmt.Errorf("accrue voice seconds for %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) UserStats(ctx context.Context, userID int64) (Stats, error) {
	member := strconv.FormatInt(userID, 10)

	msgs, err := s.client.ZScore(ctx, keyMessages, member).Result()
	if err != nil && err != redis.Nil {
		return Stats{}, fmt.Errorf("read message count for %d: %w", userID, err)
	}
	voice, err := s.client.ZScore(ctx, keyVoice, member).Result()
	if err != nil && err != redis.Nil {
		return Stats{}, fmt.Errorf("read voice seconds for %d: %w", userID, err)
	}

	return Stats{Messages: int64(msgs), VoiceSeconds: int64(voice)}, nil
}

func (s *RedisStore) Top(ctx context.Context, metric Metric, limit int64) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.client.ZRevRangeWithScores(ctx, metricKey(metric), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("top %s: %w", metric, err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		member, ok := row.Member.(string)
		if !ok {
			continue
		}
		uid, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{UserID: uid, Value: int64(row.Score)})
	}
	return entries, nil
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
