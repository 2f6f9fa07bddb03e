package ratelimit

import (
	"context"
	"sync"
	"time"
)

// defaultSweepInterval controls how often expired windows are reclaimed.
// Correctness never depends on the sweep; the lazy expiry check in Allow
// does, so the cadence only bounds memory growth.
const defaultSweepInterval = 5 * time.Minute

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter implements a fixed-window in-memory rate limiter with a
// periodic sweep that drops expired entries.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	nowFn         func() time.Time
	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
}

// NewMemoryLimiter constructs a MemoryLimiter. A nil nowFn defaults to
// time.Now.
func NewMemoryLimiter(nowFn func() time.Time) *MemoryLimiter {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryLimiter{
		windows:       make(map[string]*window),
		nowFn:         nowFn,
		sweepInterval: defaultSweepInterval,
	}
}

// Allow runs one fixed-window admission check. The increment happens before
// the threshold compare, so the first over-limit request is itself counted
// and rejected; subsequent requests stay rejected until the window resets.
func (l *MemoryLimiter) Allow(_ context.Context, key string, policy Policy, now time.Time) (Result, error) {
	if key == "" || policy.MaxRequests <= 0 {
		return Result{Allowed: true}, nil
	}

	l.mu.Lock()
	entry := l.windows[key]
	if entry == nil || !now.Before(entry.resetAt) {
		entry = &window{resetAt: now.Add(policy.Window)}
		l.windows[key] = entry
	}
	entry.count++
	count := entry.count
	resetAt := entry.resetAt
	l.mu.Unlock()

	if count > policy.MaxRequests {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, Message: policy.Message}, nil
	}
	return Result{Allowed: true, Remaining: policy.MaxRequests - count, ResetAt: resetAt}, nil
}

// Reset removes a single window entry.
func (l *MemoryLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.windows, key)
	l.mu.Unlock()
}

// Clear removes all window entries.
func (l *MemoryLimiter) Clear() {
	l.mu.Lock()
	l.windows = make(map[string]*window)
	l.mu.Unlock()
}

// Info returns the current count and reset time for a key without mutating
// state. Expired or unseen keys report ok=false and are never created.
func (l *MemoryLimiter) Info(key string) (Info, bool) {
	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.windows[key]
	if entry == nil || !now.Before(entry.resetAt) {
		return Info{}, false
	}
	return Info{Count: entry.count, ResetAt: entry.resetAt}, true
}

// Start launches the background sweep goroutine. Calling Start twice is a
// no-op until Stop is called.
func (l *MemoryLimiter) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopSweep != nil {
		return
	}
	l.stopSweep = make(chan struct{})
	l.sweepDone = make(chan struct{})
	go l.sweepLoop(l.stopSweep, l.sweepDone)
}

// Stop cancels the background sweep and waits for it to exit.
func (l *MemoryLimiter) Stop() {
	l.mu.Lock()
	stop := l.stopSweep
	done := l.sweepDone
	l.stopSweep = nil
	l.sweepDone = nil
	l.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (l *MemoryLimiter) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.sweepExpired(l.nowFn())
		}
	}
}

// sweepExpired deletes every window whose reset time has passed.
func (l *MemoryLimiter) sweepExpired(now time.Time) {
	l.mu.Lock()
	for key, entry := range l.windows {
		if !now.Before(entry.resetAt) {
			delete(l.windows, key)
		}
	}
	l.mu.Unlock()
}
