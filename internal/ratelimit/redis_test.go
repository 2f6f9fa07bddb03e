package ratelimit

import (
	"testing"
	"time"
)

func TestWindowBoundsAlignToPolicyWindow(t *testing.T) {
	window := 15 * time.Minute
	now := time.Date(2025, 1, 1, 0, 7, 30, 0, time.UTC)

	idx, resetAt := windowBounds(now, window)
	if want := now.UnixMilli() / window.Milliseconds(); idx != want {
		t.Fatalf("expected window index %d, got %d", want, idx)
	}
	if want := time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC); !resetAt.Equal(want) {
		t.Fatalf("expected reset at %s, got %s", want, resetAt)
	}

	// Same window, same index; next window, next index.
	laterSameWindow := now.Add(7 * time.Minute)
	if idxSame, _ := windowBounds(laterSameWindow, window); idxSame != idx {
		t.Fatalf("expected same index within window, got %d vs %d", idxSame, idx)
	}
	nextWindow := time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC)
	if idxNext, _ := windowBounds(nextWindow, window); idxNext != idx+1 {
		t.Fatalf("expected next index at window boundary, got %d vs %d", idxNext, idx)
	}
}

func TestWindowBoundsGuardsZeroWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	idx, resetAt := windowBounds(now, 0)
	if idx != now.UnixMilli() {
		t.Fatalf("expected millisecond index for zero window, got %d", idx)
	}
	if !resetAt.After(now) {
		t.Fatalf("expected reset after now, got %s", resetAt)
	}
}

func TestRedisKeySchemeIsPerWindow(t *testing.T) {
	limiter := NewRedisLimiter(nil, "ourstreet:rl")
	key := Key("ip:10.0.0.1", "/api/auth/login")

	if got := limiter.buildKey(key, 42); got != "ourstreet:rl:ip:10.0.0.1:/api/auth/login:42" {
		t.Fatalf("unexpected key %q", got)
	}

	bare := NewRedisLimiter(nil, "")
	if got := bare.buildKey(key, 42); got != "ip:10.0.0.1:/api/auth/login:42" {
		t.Fatalf("unexpected unprefixed key %q", got)
	}
}
