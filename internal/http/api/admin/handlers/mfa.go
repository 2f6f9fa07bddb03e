package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/ourstreet-app/ourstreet-core/internal/audit"
	"github.com/ourstreet-app/ourstreet-core/internal/http/middleware"
	"github.com/ourstreet-app/ourstreet-core/internal/models"
	"github.com/ourstreet-app/ourstreet-core/internal/security"
	"gorm.io/gorm"
)

// MFAHandler manages the TOTP second factor for admin accounts. The secret
// only becomes active once a valid code confirms the enrollment.
type MFAHandler struct {
	db       *gorm.DB
	recorder *audit.Recorder

	// pendingMu guards pendingSecrets, which holds generated but
	// unconfirmed secrets per admin ID. Handlers run concurrently.
	pendingMu      sync.Mutex
	pendingSecrets map[uint64]string
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB, recorder *audit.Recorder) *MFAHandler {
	return &MFAHandler{
		db:             db,
		recorder:       recorder,
		pendingSecrets: make(map[uint64]string),
	}
}

// Status answers GET /api/admin/mfa/status.
func (h *MFAHandler) Status(c *gin.Context) {
	adminID, _, ok := adminIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing admin context"})
		return
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, adminID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": user.TOTPSecret != ""})
}

// PrepareTOTP answers POST /api/admin/mfa/totp/prepare with a fresh secret
// and its enrollment URL. Nothing is persisted until ConfirmTOTP succeeds.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	adminID, adminEmail, ok := adminIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing admin context"})
		return
	}

	secret, url, errGenerate := security.GenerateTOTPSecret(adminEmail)
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate secret failed"})
		return
	}
	h.pendingMu.Lock()
	h.pendingSecrets[adminID] = secret
	h.pendingMu.Unlock()
	c.JSON(http.StatusOK, gin.H{"secret": secret, "url": url})
}

// confirmTOTPRequest defines the request body for TOTP confirmation.
type confirmTOTPRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP answers POST /api/admin/mfa/totp/confirm, activating the
// pending secret when the submitted code matches.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	adminID, adminEmail, ok := adminIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing admin context"})
		return
	}

	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	h.pendingMu.Lock()
	secret, pending := h.pendingSecrets[adminID]
	h.pendingMu.Unlock()
	if !pending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending enrollment"})
		return
	}
	if !security.ValidateTOTP(secret, strings.TrimSpace(body.Code)) {
		h.auditMFA(c, adminID, adminEmail, false, "invalid totp code")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", adminID).
		Update("totp_secret", secret).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.pendingMu.Lock()
	delete(h.pendingSecrets, adminID)
	h.pendingMu.Unlock()

	h.auditMFA(c, adminID, adminEmail, true, "")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DisableTOTP answers POST /api/admin/mfa/totp/disable.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	adminID, adminEmail, ok := adminIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing admin context"})
		return
	}

	errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", adminID).
		Update("totp_secret", "").Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	h.auditMFA(c, adminID, adminEmail, true, "")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *MFAHandler) auditMFA(c *gin.Context, adminID uint64, adminEmail string, success bool, errMessage string) {
	if h.recorder == nil {
		return
	}
	h.recorder.LogAdminAction(c.Request.Context(), audit.Entry{
		UserID:       &adminID,
		UserEmail:    adminEmail,
		Action:       models.ActionUpdate,
		Resource:     models.ResourceUser,
		IPAddress:    middleware.ClientIP(c),
		UserAgent:    c.Request.UserAgent(),
		RequestID:    middleware.RequestIDFrom(c),
		Success:      success,
		ErrorMessage: errMessage,
		Details:      map[string]any{"operation": "totp"},
	})
}
