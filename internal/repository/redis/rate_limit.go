package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bazarly/commerce-platform-identity/internal/core/port"
)

// reserveScript trims, counts, and conditionally records in one server-side
// round trip. Running it as a script makes the whole reserve atomic, so two
// concurrent callers racing for the last slot in the window cannot both be
// admitted. Returns {1, ""} when admitted, {0, oldest member} when rejected.
var reserveScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	local oldest = redis.call('ZRANGE', KEYS[1], 0, 0)
	if #oldest == 0 then
		return {0, ''}
	end
	return {0, oldest[1]}
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
if tonumber(ARGV[5]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
end
return {1, ''}
`)

// SlidingWindowConfig defines configuration for the sliding window limiter.
type SlidingWindowConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// RateLimitRepository persists rate-limit attempts in Redis sorted sets.
type RateLimitRepository struct {
	client *redis.Client
	cfg    SlidingWindowConfig
}

// NewRateLimitRepository constructs a repository using the provided Redis client and config.
func NewRateLimitRepository(client *redis.Client, cfg SlidingWindowConfig) *RateLimitRepository {
	return &RateLimitRepository{client: client, cfg: cfg}
}

// ReserveAttempt atomically admits and records the attempt when fewer than
// limit attempts exist in the window ending at the provided time. Members get
// a random suffix so simultaneous attempts never collapse into one entry.
func (r *RateLimitRepository) ReserveAttempt(ctx context.Context, identifier string, limit int, window time.Duration, at time.Time) (bool, time.Time, error) {
	if limit <= 0 {
		return false, time.Time{}, errors.New("limit must be positive")
	}
	if window <= 0 {
		return false, time.Time{}, errors.New("window must be positive")
	}

	key := r.key(identifier)
	threshold := fmt.Sprintf("%f", float64(at.Add(-window).UnixNano()))
	member := fmt.Sprintf("%d:%s", at.UnixNano(), uuid.NewString())

	reply, err := reserveScript.Run(ctx, r.client, []string{key},
		threshold, limit, at.UnixNano(), member, r.cfg.TTL.Milliseconds()).Slice()
	if err != nil {
		return false, time.Time{}, fmt.Errorf("redis reserve attempt: %w", err)
	}
	if len(reply) != 2 {
		return false, time.Time{}, fmt.Errorf("unexpected reserve reply: %v", reply)
	}

	if admitted, _ := reply[0].(int64); admitted == 1 {
		return true, time.Time{}, nil
	}

	oldest, _ := reply[1].(string)
	if oldest == "" {
		return false, time.Time{}, nil
	}
	ts, err := memberTime(oldest)
	if err != nil {
		return false, time.Time{}, err
	}
	return false, ts, nil
}

// RecordAttempt stores the provided timestamp within the rate limit window and applies TTL.
func (r *RateLimitRepository) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := r.key(identifier)
	member := redis.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()}

	if err := r.client.ZAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}

	if r.cfg.TTL > 0 {
		if err := r.client.Expire(ctx, key, r.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("redis expire: %w", err)
		}
	}

	return nil
}

// CountAttempts returns how many attempts occurred within the window ending at reference time.
func (r *RateLimitRepository) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	key := r.key(identifier)
	min := fmt.Sprintf("%f", float64(reference.Add(-window).UnixNano()))
	max := fmt.Sprintf("%f", float64(reference.UnixNano()))

	count, err := r.client.ZCount(ctx, key, min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}

	return int(count), nil
}

// TrimWindow removes attempts older than the provided window relative to reference time.
func (r *RateLimitRepository) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	key := r.key(identifier)
	threshold := fmt.Sprintf("%f", float64(reference.Add(-window).UnixNano()))

	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", threshold).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyscore: %w", err)
	}

	return nil
}

// OldestAttempt returns the oldest attempt remaining inside the active window.
func (r *RateLimitRepository) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	key := r.key(identifier)
	min := fmt.Sprintf("%f", float64(reference.Add(-window).UnixNano()))
	max := fmt.Sprintf("%f", float64(reference.UnixNano()))

	values, err := r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:    min,
		Max:    max,
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis zrangebyscore: %w", err)
	}

	if len(values) == 0 {
		return time.Time{}, false, nil
	}

	ts, err := memberTime(values[0])
	if err != nil {
		return time.Time{}, false, err
	}

	return ts, true, nil
}

// memberTime recovers the attempt timestamp from a sorted-set member,
// dropping the uniqueness suffix when one is present.
func memberTime(member string) (time.Time, error) {
	if i := strings.IndexByte(member, ':'); i >= 0 {
		member = member[:i]
	}
	ns, err := strconv.ParseInt(member, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return time.Unix(0, ns), nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.cfg.KeyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, identifier)
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
