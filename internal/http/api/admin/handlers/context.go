package handlers

import "github.com/gin-gonic/gin"

// Context keys stamped by the admin auth middleware.
const (
	ContextAdminID    = "adminID"
	ContextAdminEmail = "adminEmail"
)

// adminIdentity reads the authenticated admin from the gin context.
func adminIdentity(c *gin.Context) (uint64, string, bool) {
	rawID, okID := c.Get(ContextAdminID)
	rawEmail, okEmail := c.Get(ContextAdminEmail)
	if !okID || !okEmail {
		return 0, "", false
	}
	adminID, okCast := rawID.(uint64)
	adminEmail, okCastEmail := rawEmail.(string)
	if !okCast || !okCastEmail {
		return 0, "", false
	}
	return adminID, adminEmail, true
}
