package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationStatus defines lifecycle states for account verification requests.
type VerificationStatus string

const (
	// VerificationStatusPending indicates the request is awaiting admin review.
	VerificationStatusPending VerificationStatus = "pending"
	// VerificationStatusApproved indicates an admin verified the account.
	VerificationStatusApproved VerificationStatus = "approved"
	// VerificationStatusRejected indicates an admin denied the request.
	VerificationStatusRejected VerificationStatus = "rejected"
)

// VerificationRequest is created at registration and reviewed by an admin.
type VerificationRequest struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User              `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Status      VerificationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReviewedBy  *uuid.UUID         `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewNotes string             `gorm:"type:text" json:"review_notes"`
	ReviewedAt  *time.Time         `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// TableName specifies the table name for GORM
func (VerificationRequest) TableName() string {
	return "verification_requests"
}

// BeforeCreate assigns a UUID when the caller did not.
func (v *VerificationRequest) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
