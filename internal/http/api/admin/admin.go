package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ourstreet-app/ourstreet-core/internal/audit"
	"github.com/ourstreet-app/ourstreet-core/internal/config"
	handlers "github.com/ourstreet-app/ourstreet-core/internal/http/api/admin/handlers"
	"github.com/ourstreet-app/ourstreet-core/internal/http/middleware"
	"github.com/ourstreet-app/ourstreet-core/internal/models"
	"github.com/ourstreet-app/ourstreet-core/internal/ratelimit"
	"github.com/ourstreet-app/ourstreet-core/internal/security"
	"gorm.io/gorm"
)

// RegisterRoutes registers the auth endpoints, the admin surface, and the
// middleware in front of them.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, manager *ratelimit.Manager, recorder *audit.Recorder) {
	if r == nil || db == nil {
		return
	}

	r.Use(middleware.RequestID())
	r.GET("/healthz", handlers.Healthz)

	authHandler := handlers.NewAuthHandler(db, jwtCfg, recorder)
	authGroup := r.Group("/api/auth")
	authGroup.Use(middleware.RateLimit(manager, recorder, ratelimit.PolicyAuth))
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)

	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.RateLimit(manager, recorder, ratelimit.PolicyAdmin))
	adminGroup.Use(adminAuthMiddleware(db, jwtCfg))

	auditLogsHandler := handlers.NewAuditLogsHandler(recorder)
	adminGroup.GET("/audit-logs", auditLogsHandler.List)

	mfaHandler := handlers.NewMFAHandler(db, recorder)
	adminGroup.GET("/mfa/status", mfaHandler.Status)
	adminGroup.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	adminGroup.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	adminGroup.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	rateLimitsHandler := handlers.NewRateLimitsHandler(manager, recorder)
	adminGroup.GET("/rate-limits", rateLimitsHandler.Info)
	adminGroup.DELETE("/rate-limits", rateLimitsHandler.Reset)
	adminGroup.DELETE("/rate-limits/all", rateLimitsHandler.Clear)
}

// adminAuthMiddleware validates admin JWTs and loads the acting admin into
// the request context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if !user.Active || user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}
		if user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set(handlers.ContextAdminID, user.ID)
		c.Set(handlers.ContextAdminEmail, user.Email)
		c.Next()
	}
}
