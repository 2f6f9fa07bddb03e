package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisIncrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter implements a fixed-window rate limiter backed by Redis, for
// deployments where several instances must share one window table.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Allow checks whether the request should be allowed in the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, policy Policy, now time.Time) (Result, error) {
	if key == "" || policy.MaxRequests <= 0 || l == nil || l.client == nil {
		return Result{Allowed: true}, nil
	}
	idx, resetAt := windowBounds(now, policy.Window)
	ttlSeconds := int64(policy.Window/time.Second) + 1

	res, errEval := redisIncrScript.Run(ctx, l.client, []string{l.buildKey(key, idx)}, ttlSeconds).Result()
	if errEval != nil {
		return Result{}, errEval
	}
	count, ok := res.(int64)
	if !ok {
		switch v := res.(type) {
		case int:
			count = int64(v)
		case uint64:
			count = int64(v)
		default:
			return Result{}, errors.New("rate limit redis: unexpected response type")
		}
	}
	if count > int64(policy.MaxRequests) {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, Message: policy.Message}, nil
	}
	remaining := policy.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, ResetAt: resetAt}, nil
}

// Reset removes the current window entry for a key.
func (l *RedisLimiter) Reset(ctx context.Context, key string, policy Policy, now time.Time) error {
	if l == nil || l.client == nil || key == "" {
		return nil
	}
	idx, _ := windowBounds(now, policy.Window)
	return l.client.Del(ctx, l.buildKey(key, idx)).Err()
}

// Info returns the current window count for a key without incrementing.
func (l *RedisLimiter) Info(ctx context.Context, key string, policy Policy, now time.Time) (Info, bool, error) {
	if l == nil || l.client == nil || key == "" {
		return Info{}, false, nil
	}
	idx, resetAt := windowBounds(now, policy.Window)
	raw, errGet := l.client.Get(ctx, l.buildKey(key, idx)).Result()
	if errors.Is(errGet, redis.Nil) {
		return Info{}, false, nil
	}
	if errGet != nil {
		return Info{}, false, errGet
	}
	count, errParse := strconv.Atoi(raw)
	if errParse != nil {
		return Info{}, false, errParse
	}
	return Info{Count: count, ResetAt: resetAt}, true, nil
}

// Clear removes every window entry under the limiter prefix.
func (l *RedisLimiter) Clear(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	pattern := "*"
	if l.prefix != "" {
		pattern = l.prefix + ":*"
	}
	iter := l.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if errDel := l.client.Del(ctx, iter.Val()).Err(); errDel != nil {
			return errDel
		}
	}
	return iter.Err()
}

// windowBounds computes the fixed-window index and its end time.
func windowBounds(now time.Time, window time.Duration) (int64, time.Time) {
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1
	}
	idx := now.UnixMilli() / windowMs
	resetAt := time.UnixMilli((idx + 1) * windowMs).UTC()
	return idx, resetAt
}

func (l *RedisLimiter) buildKey(key string, idx int64) string {
	idxStr := strconv.FormatInt(idx, 10)
	if l.prefix == "" {
		return key + ":" + idxStr
	}
	return l.prefix + ":" + key + ":" + idxStr
}
