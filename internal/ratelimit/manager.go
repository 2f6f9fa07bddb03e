package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager selects a limiter backend and enforces rate limits. The in-memory
// fixed-window table is authoritative whenever Redis is disabled or
// unreachable; a breaker stops hammering a dead Redis.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	memoryLimiter  *MemoryLimiter
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisLimiter   *RedisLimiter
	redisCfg       redisConfig
	breakerUntil   time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = LoadSettingsConfig
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		nowFn:          nowFn,
		memoryLimiter:  NewMemoryLimiter(nowFn),
		newRedisClient: newRedisClient,
	}
}

// Policy resolves the effective policy for an endpoint class, applying any
// settings-table ceiling override.
func (m *Manager) Policy(name string) Policy {
	if m == nil {
		return BasePolicy(name)
	}
	return m.provider().PolicyFor(name)
}

// Check runs one admission decision. It never fails: backend errors fall
// back to the in-memory limiter.
func (m *Manager) Check(ctx context.Context, key string, policy Policy) Result {
	if m == nil || key == "" || policy.MaxRequests <= 0 {
		return Result{Allowed: true}
	}
	now := m.nowFn()
	cfg := m.provider()

	if cfg.RedisEnabled {
		if result, ok := m.allowRedis(ctx, key, policy, now, cfg); ok {
			return result
		}
	}
	result, _ := m.memoryLimiter.Allow(ctx, key, policy, now)
	return result
}

// Reset removes one window entry on the active backend.
func (m *Manager) Reset(ctx context.Context, key string, policy Policy) error {
	if m == nil || key == "" {
		return nil
	}
	now := m.nowFn()
	cfg := m.provider()
	m.memoryLimiter.Reset(key)
	if cfg.RedisEnabled {
		if limiter := m.currentRedis(ctx, cfg, now); limiter != nil {
			return limiter.Reset(ctx, key, policy, now)
		}
	}
	return nil
}

// Clear removes all window entries on the active backend.
func (m *Manager) Clear(ctx context.Context) error {
	if m == nil {
		return nil
	}
	now := m.nowFn()
	cfg := m.provider()
	m.memoryLimiter.Clear()
	if cfg.RedisEnabled {
		if limiter := m.currentRedis(ctx, cfg, now); limiter != nil {
			return limiter.Clear(ctx)
		}
	}
	return nil
}

// Info returns the current window state for a key without mutating it.
func (m *Manager) Info(ctx context.Context, key string, policy Policy) (Info, bool) {
	if m == nil || key == "" {
		return Info{}, false
	}
	now := m.nowFn()
	cfg := m.provider()
	if cfg.RedisEnabled {
		if limiter := m.currentRedis(ctx, cfg, now); limiter != nil {
			if info, ok, errInfo := limiter.Info(ctx, key, policy, now); errInfo == nil {
				return info, ok
			}
		}
	}
	return m.memoryLimiter.Info(key)
}

// Now returns the manager's current time, honoring the injected clock.
func (m *Manager) Now() time.Time {
	if m == nil {
		return time.Now()
	}
	return m.nowFn()
}

// Start launches the in-memory sweep goroutine.
func (m *Manager) Start() {
	if m != nil {
		m.memoryLimiter.Start()
	}
}

// Stop cancels the in-memory sweep goroutine.
func (m *Manager) Stop() {
	if m != nil {
		m.memoryLimiter.Stop()
	}
}

func (m *Manager) allowRedis(ctx context.Context, key string, policy Policy, now time.Time, cfg SettingsConfig) (Result, bool) {
	if m == nil {
		return Result{}, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if m.isBreakerActive(now) {
		return Result{}, false
	}
	limiter, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return Result{}, false
	}
	if limiter == nil {
		return Result{}, false
	}
	result, errAllow := limiter.Allow(ctx, key, policy, now)
	if errAllow != nil {
		m.tripBreaker(errAllow, now)
		return Result{}, false
	}
	return result, true
}

// currentRedis returns the Redis limiter when reachable, nil otherwise.
func (m *Manager) currentRedis(ctx context.Context, cfg SettingsConfig, now time.Time) *RedisLimiter {
	if m.isBreakerActive(now) {
		return nil
	}
	limiter, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return nil
	}
	return limiter
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil || m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: strings.TrimSpace(cfg.RedisPassword),
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisLimiter != nil && m.redisCfg == nextCfg {
		return m.redisLimiter, nil
	}
	if m.redisLimiter != nil {
		_ = m.redisLimiter.client.Close()
		m.redisLimiter = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisLimiter = NewRedisLimiter(client, nextCfg.prefix)
	m.redisCfg = nextCfg
	return m.redisLimiter, nil
}
