package ratelimit

import (
	"context"
	"testing"
	"time"
)

func testPolicy(maxRequests int, window time.Duration) Policy {
	return Policy{
		Name:        PolicyAuth,
		MaxRequests: maxRequests,
		Window:      window,
		Message:     "Too many authentication attempts, please try again later",
	}
}

func TestMemoryLimiterCountsOverLimitRequest(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })
	policy := testPolicy(3, time.Minute)
	key := Key("ip:10.0.0.1", "/api/auth/login")

	for i := 0; i < 3; i++ {
		result, errAllow := limiter.Allow(context.Background(), key, policy, now)
		if errAllow != nil {
			t.Fatalf("allow %d: %v", i+1, errAllow)
		}
		if !result.Allowed {
			t.Fatalf("expected call %d allowed", i+1)
		}
		if result.Remaining != policy.MaxRequests-i-1 {
			t.Fatalf("call %d: expected remaining=%d, got %d", i+1, policy.MaxRequests-i-1, result.Remaining)
		}
	}

	// The 4th call is rejected and itself counted.
	result, _ := limiter.Allow(context.Background(), key, policy, now)
	if result.Allowed {
		t.Fatalf("expected 4th call rejected")
	}
	if result.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", result.Remaining)
	}
	if result.Message != policy.Message {
		t.Fatalf("expected policy message, got %q", result.Message)
	}
	info, ok := limiter.Info(key)
	if !ok {
		t.Fatalf("expected window to exist")
	}
	if info.Count != 4 {
		t.Fatalf("expected rejected call counted, count=%d", info.Count)
	}

	// Still rejected until the window resets.
	if result, _ = limiter.Allow(context.Background(), key, policy, now); result.Allowed {
		t.Fatalf("expected 5th call rejected")
	}
}

func TestMemoryLimiterWindowExpiryResets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })
	policy := testPolicy(2, time.Minute)
	key := Key("ip:10.0.0.1", "/api/issues")

	for i := 0; i < 5; i++ {
		limiter.Allow(context.Background(), key, policy, now)
	}

	after := now.Add(policy.Window)
	result, _ := limiter.Allow(context.Background(), key, policy, after)
	if !result.Allowed {
		t.Fatalf("expected fresh window to admit")
	}
	if result.Remaining != policy.MaxRequests-1 {
		t.Fatalf("expected remaining=%d, got %d", policy.MaxRequests-1, result.Remaining)
	}
	if !result.ResetAt.Equal(after.Add(policy.Window)) {
		t.Fatalf("expected resetAt=%s, got %s", after.Add(policy.Window), result.ResetAt)
	}
}

func TestMemoryLimiterKeysAreIsolated(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })
	policy := testPolicy(1, time.Minute)

	exhausted := Key("ip:10.0.0.1", "/api/auth/login")
	otherIdentity := Key("ip:10.0.0.2", "/api/auth/login")
	otherRoute := Key("ip:10.0.0.1", "/api/issues")

	limiter.Allow(context.Background(), exhausted, policy, now)
	if result, _ := limiter.Allow(context.Background(), exhausted, policy, now); result.Allowed {
		t.Fatalf("expected exhausted key rejected")
	}

	if result, _ := limiter.Allow(context.Background(), otherIdentity, policy, now); !result.Allowed {
		t.Fatalf("expected distinct identity unaffected")
	}
	if result, _ := limiter.Allow(context.Background(), otherRoute, policy, now); !result.Allowed {
		t.Fatalf("expected distinct route unaffected")
	}
}

func TestMemoryLimiterInfoIsReadOnly(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })
	policy := testPolicy(5, time.Minute)
	key := Key("ip:10.0.0.1", "/api/auth/login")

	if _, ok := limiter.Info(key); ok {
		t.Fatalf("expected no window before first request")
	}
	if _, ok := limiter.Info(key); ok {
		t.Fatalf("expected Info not to create a window")
	}

	limiter.Allow(context.Background(), key, policy, now)
	for i := 0; i < 10; i++ {
		info, ok := limiter.Info(key)
		if !ok {
			t.Fatalf("expected window to exist")
		}
		if info.Count != 1 {
			t.Fatalf("expected Info to leave count at 1, got %d", info.Count)
		}
	}
}

func TestMemoryLimiterAuthPolicyScenario(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })
	policy := BasePolicy(PolicyAuth)
	key := Key("ip:10.0.0.1", "/api/auth/login")

	wantRemaining := []int{4, 3, 2, 1, 0}
	for i, want := range wantRemaining {
		result, _ := limiter.Allow(context.Background(), key, policy, now)
		if !result.Allowed {
			t.Fatalf("expected call %d allowed", i+1)
		}
		if result.Remaining != want {
			t.Fatalf("call %d: expected remaining=%d, got %d", i+1, want, result.Remaining)
		}
	}

	result, _ := limiter.Allow(context.Background(), key, policy, now)
	if result.Allowed {
		t.Fatalf("expected 6th call rejected")
	}
	if result.Message != policy.Message {
		t.Fatalf("expected auth policy message, got %q", result.Message)
	}
	retryAfter := result.RetryAfterSeconds(now)
	if retryAfter <= 0 || retryAfter > 900 {
		t.Fatalf("expected 0 < retryAfter <= 900, got %d", retryAfter)
	}
}

func TestMemoryLimiterSweepDropsExpiredWindows(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })
	policy := testPolicy(5, time.Minute)

	limiter.Allow(context.Background(), "a", policy, now)
	limiter.Allow(context.Background(), "b", policy, now.Add(-2*time.Minute))

	limiter.sweepExpired(now)

	if _, ok := limiter.Info("a"); !ok {
		t.Fatalf("expected live window kept")
	}
	limiter.mu.Lock()
	_, exists := limiter.windows["b"]
	limiter.mu.Unlock()
	if exists {
		t.Fatalf("expected expired window swept")
	}
}

func TestMemoryLimiterResetAndClear(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })
	policy := testPolicy(1, time.Minute)

	limiter.Allow(context.Background(), "a", policy, now)
	limiter.Allow(context.Background(), "b", policy, now)

	limiter.Reset("a")
	if result, _ := limiter.Allow(context.Background(), "a", policy, now); !result.Allowed {
		t.Fatalf("expected reset key to admit again")
	}

	limiter.Clear()
	if _, ok := limiter.Info("b"); ok {
		t.Fatalf("expected Clear to drop all windows")
	}
}
