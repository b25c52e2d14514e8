package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AlumniProfile is the public-facing profile of a graduate and their mentoring availability.
type AlumniProfile struct {
	ID                uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID   `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User              *User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	CurrentPosition   string      `json:"current_position"`
	CurrentCompany    string      `json:"current_company"`
	Industry          string      `gorm:"index" json:"industry"`
	GraduationYear    int         `json:"graduation_year"`
	Bio               string      `gorm:"type:text" json:"bio"`
	ExpertiseAreas    StringSlice `gorm:"type:text" json:"expertise_areas"`
	MentorshipAreas   StringSlice `gorm:"type:text" json:"mentorship_areas"`
	IsMentorAvailable bool        `gorm:"default:false;index" json:"is_mentor_available"`
	IsPublicProfile   bool        `gorm:"not null" json:"is_public_profile"`
	LinkedinURL       string      `json:"linkedin_url"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (AlumniProfile) TableName() string {
	return "alumni_profiles"
}

// BeforeCreate assigns a UUID when the caller did not.
func (p *AlumniProfile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// StudentProfile holds the academic details a student shares with mentors.
type StudentProfile struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID   `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User        *User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	RollNumber  string      `json:"roll_number"`
	Department  string      `gorm:"default:'Computer Science'" json:"department"`
	CurrentYear int         `json:"current_year"`
	CareerGoals string      `gorm:"type:text" json:"career_goals"`
	Interests   StringSlice `gorm:"type:text" json:"interests"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (StudentProfile) TableName() string {
	return "student_profiles"
}

// BeforeCreate assigns a UUID when the caller did not.
func (p *StudentProfile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
