package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Message   string
}

// RetryAfterSeconds returns the whole seconds a rejected client should wait,
// rounded up, never negative.
func (r Result) RetryAfterSeconds(now time.Time) int {
	if !now.Before(r.ResetAt) {
		return 0
	}
	d := r.ResetAt.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// Info is a read-only view of one window entry.
type Info struct {
	Count   int
	ResetAt time.Time
}

// Limiter provides fixed-window rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, policy Policy, now time.Time) (Result, error)
}
