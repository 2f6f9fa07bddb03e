package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ourstreet-app/ourstreet-core/internal/audit"
	"github.com/ourstreet-app/ourstreet-core/internal/http/middleware"
	"github.com/ourstreet-app/ourstreet-core/internal/models"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 1000
)

// AuditLogsHandler serves the admin audit query surface.
type AuditLogsHandler struct {
	recorder *audit.Recorder
}

// NewAuditLogsHandler constructs an AuditLogsHandler.
func NewAuditLogsHandler(recorder *audit.Recorder) *AuditLogsHandler {
	return &AuditLogsHandler{recorder: recorder}
}

// List answers GET /api/admin/audit-logs. Query params select conjunctive
// filters; export=true, stats=true and security=true switch the response
// mode. Every call, whatever the mode, is itself recorded as an access
// event against the audit log resource.
func (h *AuditLogsHandler) List(c *gin.Context) {
	filter, applied := parseAuditFilter(c)

	mode := "list"
	switch {
	case parseBoolParam(c.Query("export")):
		mode = "export"
	case parseBoolParam(c.Query("stats")):
		mode = "stats"
	case parseBoolParam(c.Query("security")):
		mode = "security"
	}
	applied["mode"] = mode

	// Recorded after the query so the access event does not show up in its
	// own result set.
	ok := true
	defer func() { h.auditAccess(c, applied, ok) }()

	ctx := c.Request.Context()
	switch mode {
	case "export":
		events, errExport := h.recorder.Export(ctx, filter.Start, filter.End)
		if errExport != nil {
			ok = false
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		filename := fmt.Sprintf("audit-logs-%s.json", time.Now().UTC().Format("2006-01-02"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.JSON(http.StatusOK, gin.H{"logs": events, "total": len(events)})
	case "stats":
		stats, errStats := h.recorder.Stats(ctx, filter.Start, filter.End)
		if errStats != nil {
			ok = false
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
			return
		}
		c.JSON(http.StatusOK, stats)
	case "security":
		events, errEvents := h.recorder.SecurityEvents(ctx, filter.Limit)
		if errEvents != nil {
			ok = false
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": events, "total": len(events)})
	default:
		logs, total, errQuery := h.recorder.Query(ctx, filter)
		if errQuery != nil {
			ok = false
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"logs":   logs,
			"total":  total,
			"limit":  filter.Limit,
			"offset": filter.Offset,
		})
	}
}

func (h *AuditLogsHandler) auditAccess(c *gin.Context, applied map[string]any, success bool) {
	if h.recorder == nil {
		return
	}
	entry := audit.Entry{
		Action:    models.ActionAccess,
		Resource:  models.ResourceAuditLog,
		IPAddress: middleware.ClientIP(c),
		UserAgent: c.Request.UserAgent(),
		RequestID: middleware.RequestIDFrom(c),
		Success:   success,
		Details:   applied,
	}
	if adminID, adminEmail, ok := adminIdentity(c); ok {
		entry.UserID = &adminID
		entry.UserEmail = adminEmail
	}
	h.recorder.LogAdminAction(c.Request.Context(), entry)
}

// parseAuditFilter reads the filter query params. Malformed values are
// skipped rather than rejected; the returned map records what was applied.
func parseAuditFilter(c *gin.Context) (audit.Filter, map[string]any) {
	filter := audit.Filter{Limit: defaultAuditPageSize}
	applied := map[string]any{}

	if raw := strings.TrimSpace(c.Query("userId")); raw != "" {
		if userID, errParse := strconv.ParseUint(raw, 10, 64); errParse == nil {
			filter.UserID = &userID
			applied["userId"] = userID
		}
	}
	if email := strings.TrimSpace(c.Query("email")); email != "" {
		filter.UserEmail = email
		applied["email"] = email
	}
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		filter.Action = action
		applied["action"] = action
	}
	if resource := strings.TrimSpace(c.Query("resource")); resource != "" {
		filter.Resource = resource
		applied["resource"] = resource
	}
	if raw := strings.TrimSpace(c.Query("success")); raw != "" {
		if success, errParse := strconv.ParseBool(raw); errParse == nil {
			filter.Success = &success
			applied["success"] = success
		}
	}
	if start, ok := parseDateParam(c.Query("startDate")); ok {
		filter.Start = &start
		applied["startDate"] = start.Format(time.RFC3339)
	}
	if end, ok := parseDateParam(c.Query("endDate")); ok {
		filter.End = &end
		applied["endDate"] = end.Format(time.RFC3339)
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if limit, errParse := strconv.Atoi(raw); errParse == nil && limit > 0 {
			if limit > maxAuditPageSize {
				limit = maxAuditPageSize
			}
			filter.Limit = limit
		}
	}
	applied["limit"] = filter.Limit
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		if offset, errParse := strconv.Atoi(raw); errParse == nil && offset > 0 {
			filter.Offset = offset
		}
	}
	if filter.Offset > 0 {
		applied["offset"] = filter.Offset
	}
	return filter, applied
}

// parseDateParam accepts RFC 3339 timestamps or bare dates.
func parseDateParam(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if parsed, errParse := time.Parse(time.RFC3339, raw); errParse == nil {
		return parsed.UTC(), true
	}
	if parsed, errParse := time.Parse("2006-01-02", raw); errParse == nil {
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

func parseBoolParam(raw string) bool {
	parsed, errParse := strconv.ParseBool(strings.TrimSpace(raw))
	return errParse == nil && parsed
}
