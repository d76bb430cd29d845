package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"checkpoint/pkg/platform/sentinel"
)

const windowKeyPrefix = "ratelimit:window:"

// RedisWindowStore shares sliding windows across instances using a sorted
// set per identity, scored by attempt time. The whole read-modify-write runs
// in one pipeline so concurrent attempts from the same identity stay
// consistent.
type RedisWindowStore struct {
	client *redis.Client
}

// NewRedisWindowStore constructs a Redis-backed window store.
func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

func (s *RedisWindowStore) Observe(ctx context.Context, identity string, now time.Time, window time.Duration) (int, time.Time, error) {
	key := windowKeyPrefix + identity
	cutoff := now.Add(-window)

	// Member must be unique per attempt; nanosecond timestamps collide only
	// if the same identity produces two attempts in the same nanosecond.
	member := strconv.FormatInt(now.UnixNano(), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.Expire(ctx, key, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: observe rate window: %v", sentinel.ErrUnavailable, err)
	}

	count := int(countCmd.Val())
	oldest := now
	if entries := oldestCmd.Val(); len(entries) > 0 {
		oldest = time.Unix(0, int64(entries[0].Score))
	}
	return count, oldest, nil
}
