package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ourstreet-app/ourstreet-core/internal/audit"
	"github.com/ourstreet-app/ourstreet-core/internal/models"
	"github.com/ourstreet-app/ourstreet-core/internal/ratelimit"
)

// RateLimit enforces the named endpoint-class policy before business logic
// runs. Admitted requests carry the X-RateLimit-* headers for client budget
// tracking; rejections answer 429 with retry timing and emit a best-effort
// audit event.
func RateLimit(manager *ratelimit.Manager, recorder *audit.Recorder, policyName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy := manager.Policy(policyName)
		identity := ratelimit.ClientIdentity(c.Request)
		routePath := c.FullPath()
		if routePath == "" {
			routePath = c.Request.URL.Path
		}
		key := ratelimit.Key(identity, routePath)

		result := manager.Check(c.Request.Context(), key, policy)

		c.Header("X-RateLimit-Limit", strconv.Itoa(policy.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.ResetAt.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		}
		if result.Allowed {
			c.Next()
			return
		}

		retryAfter := result.RetryAfterSeconds(manager.Now())
		c.Header("Retry-After", strconv.Itoa(retryAfter))

		if recorder != nil {
			recorder.LogAuth(c.Request.Context(), audit.Entry{
				UserEmail:    models.AnonymousEmail,
				Action:       models.ActionRateLimited,
				Resource:     models.ResourceRateLimit,
				IPAddress:    ClientIP(c),
				UserAgent:    c.Request.UserAgent(),
				RequestID:    RequestIDFrom(c),
				Success:      false,
				ErrorMessage: result.Message,
				Details: map[string]any{
					"identity": identity,
					"path":     routePath,
					"policy":   policy.Name,
				},
			})
		}

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success":    false,
			"error":      result.Message,
			"retryAfter": retryAfter,
		})
	}
}

// ClientIP returns the forwarded client address used for audit provenance,
// mirroring the rate limit identity precedence.
func ClientIP(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return ""
	}
	if forwarded := strings.TrimSpace(c.Request.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.Request.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return c.ClientIP()
}
