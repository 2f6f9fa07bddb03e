package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions recorded by the security core. The set is closed: handlers
// never write free-form action strings.
const (
	ActionLogin       = "login"
	ActionLogout      = "logout"
	ActionRefresh     = "refresh"
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionExport      = "export"
	ActionAccess      = "access"
	ActionRateLimited = "rate_limited"
	ActionRoleChange  = "role_change"
)

// Audit resources targeted by recorded actions.
const (
	ResourceUser      = "user"
	ResourceIssue     = "issue"
	ResourceAdmin     = "admin"
	ResourceAuditLog  = "audit_log"
	ResourceSession   = "session"
	ResourceRateLimit = "rate_limit"
)

// AnonymousEmail is the sentinel actor email for unauthenticated events.
const AnonymousEmail = "anonymous"

// AuditLog is a write-once record of a security or administrative event.
// Rows are only ever appended; there is no update or delete path.
type AuditLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key, assigned at append.

	Timestamp time.Time `gorm:"not null;index"` // Event time (UTC).

	UserID    *uint64 `gorm:"index"`                // Acting user ID, nil when anonymous.
	UserEmail string  `gorm:"type:text;not null"`   // Acting email, "anonymous" sentinel when unknown.
	Action    string  `gorm:"type:text;not null;index"` // Enumerated verb.
	Resource  string  `gorm:"type:text;not null;index"` // Enumerated target kind.

	IPAddress string `gorm:"type:text"` // Client IP from the triggering request.
	UserAgent string `gorm:"type:text"` // Client user agent.
	RequestID string `gorm:"type:text"` // Correlation ID stamped by middleware.

	Success      bool   `gorm:"not null;index"` // Outcome flag.
	ErrorMessage string `gorm:"type:text"`      // Populated only on failure.

	Details datatypes.JSON `gorm:"type:jsonb"` // Structured context payload.
}
