package models

import "time"

// Role names assigned to user accounts.
const (
	// RoleCitizen is the default role for reporters.
	RoleCitizen = "citizen"
	// RoleAdmin grants access to the municipal dashboard and audit surface.
	RoleAdmin = "admin"
)

// User represents a citizen or administrator account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	Name     string `gorm:"type:text"`                      // Display name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Role string `gorm:"type:text;not null;default:'citizen'"` // Account role.

	TOTPSecret string `gorm:"type:text"` // TOTP secret for admin MFA.

	Active   bool `gorm:"not null;default:true"`  // Whether the user can sign in.
	Disabled bool `gorm:"not null;default:false"` // Explicit disable flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
