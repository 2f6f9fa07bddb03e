package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ourstreet-app/ourstreet-core/internal/audit"
	"github.com/ourstreet-app/ourstreet-core/internal/config"
	"github.com/ourstreet-app/ourstreet-core/internal/http/middleware"
	"github.com/ourstreet-app/ourstreet-core/internal/models"
	"github.com/ourstreet-app/ourstreet-core/internal/security"
	"gorm.io/gorm"
)

// AuthHandler serves login and token refresh.
type AuthHandler struct {
	db       *gorm.DB
	jwtCfg   config.JWTConfig
	recorder *audit.Recorder
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, recorder *audit.Recorder) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, recorder: recorder}
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code"`
}

// Login verifies credentials and issues a JWT. Every attempt is audited.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || strings.TrimSpace(body.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing credentials"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		h.auditLogin(c, nil, email, false, "invalid credentials")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !user.Active || user.Disabled {
		h.auditLogin(c, &user.ID, user.Email, false, "account disabled")
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}
	if !security.CheckPassword(user.Password, body.Password) {
		h.auditLogin(c, &user.ID, user.Email, false, "invalid credentials")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if user.Role == models.RoleAdmin && user.TOTPSecret != "" {
		if !security.ValidateTOTP(user.TOTPSecret, strings.TrimSpace(body.TOTPCode)) {
			h.auditLogin(c, &user.ID, user.Email, false, "invalid totp code")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
			return
		}
	}

	token, errSign := security.SignToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, user.ID, user.Email, user.Role)
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	h.auditLogin(c, &user.ID, user.Email, true, "")
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int64(h.jwtCfg.Expiry.Seconds()),
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

// refreshRequest defines the request body for token refresh.
type refreshRequest struct {
	Token string `json:"token"`
}

// Refresh re-issues a token for a still-valid session. When the stored role
// differs from the token's embedded role, the new token carries the current
// role and the change is recorded in the audit details.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var body refreshRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	raw := strings.TrimSpace(body.Token)
	if raw == "" {
		raw = bearerToken(c)
	}
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}

	claims, errParse := security.ParseToken(h.jwtCfg.Secret, raw)
	if errParse != nil {
		message := "invalid token"
		if errors.Is(errParse, security.ErrExpiredToken) {
			message = "token expired"
		}
		h.auditRefresh(c, nil, "", false, message, nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": message})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			h.auditRefresh(c, &claims.UserID, claims.Email, false, "user not found", nil)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !user.Active || user.Disabled {
		h.auditRefresh(c, &user.ID, user.Email, false, "account disabled", nil)
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}

	// A role change since issuance is not an error: the fresh token simply
	// carries the current role, and the change stays visible in the audit
	// trail.
	var details map[string]any
	if user.Role != claims.Role {
		details = map[string]any{
			"role_changed": true,
			"old_role":     claims.Role,
			"new_role":     user.Role,
		}
	}

	token, errSign := security.SignToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, user.ID, user.Email, user.Role)
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	h.auditRefresh(c, &user.ID, user.Email, true, "", details)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int64(h.jwtCfg.Expiry.Seconds()),
	})
}

func (h *AuthHandler) auditLogin(c *gin.Context, userID *uint64, email string, success bool, errMessage string) {
	if h.recorder == nil {
		return
	}
	h.recorder.LogAuth(c.Request.Context(), audit.Entry{
		UserID:       userID,
		UserEmail:    email,
		Action:       models.ActionLogin,
		Resource:     models.ResourceSession,
		IPAddress:    middleware.ClientIP(c),
		UserAgent:    c.Request.UserAgent(),
		RequestID:    middleware.RequestIDFrom(c),
		Success:      success,
		ErrorMessage: errMessage,
	})
}

func (h *AuthHandler) auditRefresh(c *gin.Context, userID *uint64, email string, success bool, errMessage string, details map[string]any) {
	if h.recorder == nil {
		return
	}
	h.recorder.LogAuth(c.Request.Context(), audit.Entry{
		UserID:       userID,
		UserEmail:    email,
		Action:       models.ActionRefresh,
		Resource:     models.ResourceSession,
		IPAddress:    middleware.ClientIP(c),
		UserAgent:    c.Request.UserAgent(),
		RequestID:    middleware.RequestIDFrom(c),
		Success:      success,
		ErrorMessage: errMessage,
		Details:      details,
	})
}

// bearerToken extracts the raw bearer token from the Authorization header.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
