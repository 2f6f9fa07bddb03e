package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ourstreet-app/ourstreet-core/internal/audit"
	"github.com/ourstreet-app/ourstreet-core/internal/models"
	"github.com/ourstreet-app/ourstreet-core/internal/ratelimit"
	"gorm.io/gorm"
)

func newRateLimitsEnv(t *testing.T, now time.Time) (*gin.Engine, *ratelimit.Manager, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	manager := ratelimit.NewManager(func() ratelimit.SettingsConfig {
		return ratelimit.SettingsConfig{}
	}, func() time.Time {
		return now
	}, nil)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(ContextAdminID, uint64(7))
		c.Set(ContextAdminEmail, "admin@town.gov")
	})
	handler := NewRateLimitsHandler(manager, audit.NewRecorder(conn, nil))
	engine.GET("/api/admin/rate-limits", handler.Info)
	engine.DELETE("/api/admin/rate-limits", handler.Reset)
	engine.DELETE("/api/admin/rate-limits/all", handler.Clear)
	return engine, manager, conn
}

func exhaust(t *testing.T, manager *ratelimit.Manager, key, policyName string, n int) {
	t.Helper()
	policy := manager.Policy(policyName)
	for i := 0; i < n; i++ {
		manager.Check(context.Background(), key, policy)
	}
}

func TestRateLimitInfoReportsActiveWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine, manager, _ := newRateLimitsEnv(t, now)
	key := ratelimit.Key("ip:198.51.100.7", "/api/auth/login")
	exhaust(t, manager, key, ratelimit.PolicyAuth, 3)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/rate-limits?identity=ip:198.51.100.7&path=/api/auth/login&policy=auth", nil)
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Active    bool `json:"active"`
		Count     int  `json:"count"`
		Limit     int  `json:"limit"`
		Remaining int  `json:"remaining"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if !body.Active || body.Count != 3 || body.Limit != 5 || body.Remaining != 2 {
		t.Fatalf("unexpected info %+v", body)
	}
}

func TestRateLimitInfoUnseenKeyInactive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine, _, _ := newRateLimitsEnv(t, now)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/rate-limits?identity=ip:203.0.113.9&path=/api/issues&policy=issue-create", nil)
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Active bool `json:"active"`
		Limit  int  `json:"limit"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if body.Active || body.Limit != 20 {
		t.Fatalf("unexpected info %+v", body)
	}
}

func TestRateLimitResetReadmitsAndAudits(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine, manager, conn := newRateLimitsEnv(t, now)
	key := ratelimit.Key("ip:198.51.100.7", "/api/auth/login")
	exhaust(t, manager, key, ratelimit.PolicyAuth, 6)

	policy := manager.Policy(ratelimit.PolicyAuth)
	if result := manager.Check(context.Background(), key, policy); result.Allowed {
		t.Fatalf("expected key exhausted before reset")
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/rate-limits?identity=ip:198.51.100.7&path=/api/auth/login", nil)
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if result := manager.Check(context.Background(), key, policy); !result.Allowed {
		t.Fatalf("expected key readmitted after reset")
	}

	var event models.AuditLog
	errFind := conn.Where("action = ? AND resource = ?", models.ActionDelete, models.ResourceRateLimit).First(&event).Error
	if errFind != nil {
		t.Fatalf("expected reset audit event: %v", errFind)
	}
	if event.UserEmail != "admin@town.gov" {
		t.Fatalf("expected acting admin on event, got %+v", event)
	}
}

func TestRateLimitClearDropsAllKeys(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine, manager, conn := newRateLimitsEnv(t, now)
	keyA := ratelimit.Key("ip:198.51.100.7", "/api/auth/login")
	keyB := ratelimit.Key("ip:203.0.113.9", "/api/auth/login")
	exhaust(t, manager, keyA, ratelimit.PolicyAuth, 6)
	exhaust(t, manager, keyB, ratelimit.PolicyAuth, 6)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/admin/rate-limits/all", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	policy := manager.Policy(ratelimit.PolicyAuth)
	if result := manager.Check(context.Background(), keyA, policy); !result.Allowed {
		t.Fatalf("expected keyA readmitted after clear")
	}
	if result := manager.Check(context.Background(), keyB, policy); !result.Allowed {
		t.Fatalf("expected keyB readmitted after clear")
	}

	var count int64
	if errCount := conn.Model(&models.AuditLog{}).Where("resource = ?", models.ResourceRateLimit).Count(&count).Error; errCount != nil {
		t.Fatalf("count audit events: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 clear audit event, got %d", count)
	}
}

func TestRateLimitInfoRequiresParams(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine, _, _ := newRateLimitsEnv(t, now)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/rate-limits", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
