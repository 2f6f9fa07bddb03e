package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ourstreet-app/ourstreet-core/internal/audit"
	"github.com/ourstreet-app/ourstreet-core/internal/http/middleware"
	"github.com/ourstreet-app/ourstreet-core/internal/models"
	"github.com/ourstreet-app/ourstreet-core/internal/ratelimit"
)

// RateLimitsHandler exposes admin overrides for the rate limiter.
type RateLimitsHandler struct {
	manager  *ratelimit.Manager
	recorder *audit.Recorder
}

// NewRateLimitsHandler constructs a RateLimitsHandler.
func NewRateLimitsHandler(manager *ratelimit.Manager, recorder *audit.Recorder) *RateLimitsHandler {
	return &RateLimitsHandler{manager: manager, recorder: recorder}
}

// Info answers GET /api/admin/rate-limits with identity, path and policy
// query params. The lookup is read-only: it never creates a window.
func (h *RateLimitsHandler) Info(c *gin.Context) {
	identity := strings.TrimSpace(c.Query("identity"))
	routePath := strings.TrimSpace(c.Query("path"))
	if identity == "" || routePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity and path are required"})
		return
	}
	policy := h.manager.Policy(strings.TrimSpace(c.Query("policy")))
	key := ratelimit.Key(identity, routePath)

	info, ok := h.manager.Info(c.Request.Context(), key, policy)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"key":    key,
			"active": false,
			"limit":  policy.MaxRequests,
		})
		return
	}
	remaining := policy.MaxRequests - info.Count
	if remaining < 0 {
		remaining = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"key":       key,
		"active":    true,
		"count":     info.Count,
		"limit":     policy.MaxRequests,
		"remaining": remaining,
		"resetAt":   info.ResetAt.UTC(),
	})
}

// Reset answers DELETE /api/admin/rate-limits with identity and path query
// params, dropping the one window so the client is readmitted immediately.
func (h *RateLimitsHandler) Reset(c *gin.Context) {
	identity := strings.TrimSpace(c.Query("identity"))
	routePath := strings.TrimSpace(c.Query("path"))
	if identity == "" || routePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity and path are required"})
		return
	}
	policy := h.manager.Policy(strings.TrimSpace(c.Query("policy")))
	key := ratelimit.Key(identity, routePath)
	if errReset := h.manager.Reset(c.Request.Context(), key, policy); errReset != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}

	h.auditMutation(c, "reset", map[string]any{"key": key})
	c.JSON(http.StatusOK, gin.H{"success": true, "key": key})
}

// Clear answers DELETE /api/admin/rate-limits/all, dropping every window.
func (h *RateLimitsHandler) Clear(c *gin.Context) {
	if errClear := h.manager.Clear(c.Request.Context()); errClear != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}

	h.auditMutation(c, "clear_all", nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RateLimitsHandler) auditMutation(c *gin.Context, operation string, extra map[string]any) {
	if h.recorder == nil {
		return
	}
	details := map[string]any{"operation": operation}
	for k, v := range extra {
		details[k] = v
	}
	entry := audit.Entry{
		Action:    models.ActionDelete,
		Resource:  models.ResourceRateLimit,
		IPAddress: middleware.ClientIP(c),
		UserAgent: c.Request.UserAgent(),
		RequestID: middleware.RequestIDFrom(c),
		Success:   true,
		Details:   details,
	}
	if adminID, adminEmail, ok := adminIdentity(c); ok {
		entry.UserID = &adminID
		entry.UserEmail = adminEmail
	}
	h.recorder.LogAdminAction(c.Request.Context(), entry)
}
