package velocity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisTracker is the Pro tier tracker. Each account maps to a sorted set
// whose members are scored by timestamp (milliseconds), so a window query is
// a single ZCOUNT and pruning is a ZREMRANGEBYSCORE. This keeps velocity
// exact across multiple engine nodes.
type RedisTracker struct {
	client    *redis.Client
	maxWindow time.Duration
}

// NewRedisTracker connects to Redis and verifies the connection.
func NewRedisTracker(addr, password string, db int, maxWindow time.Duration) (*RedisTracker, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if maxWindow <= 0 {
		maxWindow = time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisTracker{client: client, maxWindow: maxWindow}, nil
}

// Record adds the timestamp to the account's sorted set and prunes entries
// older than the maximum window. The member carries a UUID suffix so two
// transactions at the same instant remain distinct entries.
func (t *RedisTracker) Record(ctx context.Context, accountID string, ts time.Time) error {
	key := t.makeKey(accountID)
	ms := ts.UnixMilli()

	member := strconv.FormatInt(ms, 10) + ":" + uuid.New().String()

	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(ms), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", ts.Add(-t.maxWindow).UnixMilli()))
	pipe.Expire(ctx, key, t.maxWindow*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record velocity entry: %w", err)
	}
	return nil
}

// CountWithin counts entries scored within [now-window, now], inclusive.
func (t *RedisTracker) CountWithin(ctx context.Context, accountID string, now time.Time, window time.Duration) (int, error) {
	key := t.makeKey(accountID)
	min := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	max := strconv.FormatInt(now.UnixMilli(), 10)

	count, err := t.client.ZCount(ctx, key, min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count velocity entries: %w", err)
	}
	return int(count), nil
}

// Close closes the Redis connection.
func (t *RedisTracker) Close() error {
	return t.client.Close()
}

func (t *RedisTracker) makeKey(accountID string) string {
	return "kestrel:velocity:" + accountID
}
