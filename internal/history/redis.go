package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ricesearch/qac-eval/internal/evaluation"
	"github.com/ricesearch/qac-eval/internal/pkg/errors"
)

const defaultKey = "qac:runs"

// RedisStore keeps run summaries in a Redis sorted set scored by start time.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration // 0 = keep forever
}

// NewRedisStore connects to Redis at url.
// Returns error if connection fails.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "parsing redis URL", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		unavailable := errors.ServiceUnavailableError("redis")
		unavailable.Err = err
		return nil, unavailable
	}

	return &RedisStore{
		client: client,
		key:    defaultKey,
		ttl:    ttl,
	}, nil
}

// SetKey changes the sorted set key, mainly for test isolation.
func (rs *RedisStore) SetKey(key string) {
	rs.key = key
}

// Save records a finished run and trims runs older than the TTL.
func (rs *RedisStore) Save(ctx context.Context, run *evaluation.RunSummary) error {
	member, err := json.Marshal(run)
	if err != nil {
		return errors.InternalError("encoding run summary", err)
	}

	pipe := rs.client.Pipeline()

	pipe.ZAdd(ctx, rs.key, redis.Z{
		Score:  float64(run.StartedAt.UnixMilli()),
		Member: string(member),
	})

	if rs.ttl > 0 {
		minScore := time.Now().Add(-rs.ttl).UnixMilli()
		pipe.ZRemRangeByScore(ctx, rs.key, "-inf", "("+strconv.FormatInt(minScore, 10))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	return nil
}

// Recent returns up to limit runs, newest first.
func (rs *RedisStore) Recent(ctx context.Context, limit int) ([]*evaluation.RunSummary, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	members, err := rs.client.ZRevRange(ctx, rs.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("loading runs: %w", err)
	}

	runs := make([]*evaluation.RunSummary, 0, len(members))
	for _, m := range members {
		var run evaluation.RunSummary
		if err := json.Unmarshal([]byte(m), &run); err != nil {
			// Skip invalid entries
			continue
		}
		runs = append(runs, &run)
	}

	return runs, nil
}

// Clear deletes every stored run.
func (rs *RedisStore) Clear(ctx context.Context) error {
	if err := rs.client.Del(ctx, rs.key).Err(); err != nil {
		return fmt.Errorf("clearing runs: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
