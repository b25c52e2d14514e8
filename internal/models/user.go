package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole distinguishes students, alumni (mentors) and administrators.
type UserRole string

const (
	// RoleStudent is a current student who may request mentorship.
	RoleStudent UserRole = "student"
	// RoleAlumni is a graduate who may mentor students.
	RoleAlumni UserRole = "alumni"
	// RoleAdmin manages verification and maintenance.
	RoleAdmin UserRole = "admin"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleAlumni, RoleAdmin:
		return true
	}
	return false
}

// User is an account on the platform.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `gorm:"column:password_hash;not null" json:"-"`
	Role         UserRole   `gorm:"type:varchar(20);not null;index" json:"role"`
	IsVerified   bool       `gorm:"default:false" json:"is_verified"`
	VerifiedBy   *uuid.UUID `gorm:"type:uuid" json:"verified_by,omitempty"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a UUID when the caller did not.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
