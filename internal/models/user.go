package models

import "time"

// Role names understood by the platform.
const (
	RoleVoter      = "VOTER"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// ValidRole reports whether role is one of the known role names.
func ValidRole(role string) bool {
	return role == RoleVoter || role == RoleSuperAdmin
}

// User is an account able to vote. Email is stored lower-cased.
type User struct {
	BaseModel

	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"uniqueIndex;size:320;not null" json:"email"`
	PasswordHash string `gorm:"size:255" json:"-"`
	Role         string `gorm:"size:32;not null;default:VOTER;index" json:"role"`

	EmailVerified   bool       `gorm:"not null;default:false" json:"email_verified"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (u *User) IsSuperAdmin() bool {
	return u != nil && u.Role == RoleSuperAdmin
}
