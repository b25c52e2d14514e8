package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus represents the lifecycle state of a mentorship request.
type RequestStatus string

const (
	// RequestStatusPending is the initial state of every request.
	RequestStatusPending RequestStatus = "pending"
	// RequestStatusAccepted means the mentor took the student on.
	RequestStatusAccepted RequestStatus = "accepted"
	// RequestStatusDeclined is terminal: refused by the mentor or superseded by a duplicate.
	RequestStatusDeclined RequestStatus = "declined"
	// RequestStatusCompleted is terminal: the mentorship ran its course.
	RequestStatusCompleted RequestStatus = "completed"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusDeclined, RequestStatusCompleted:
		return true
	}
	return false
}

// Active reports whether the status still occupies the student/mentor pair.
func (s RequestStatus) Active() bool {
	return s == RequestStatusPending || s == RequestStatusAccepted
}

// Terminal reports whether no transition leaves s.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusDeclined || s == RequestStatusCompleted
}

// StatusRank orders statuses for duplicate resolution: accepted beats pending,
// which beats everything else.
func StatusRank(s RequestStatus) int {
	switch s {
	case RequestStatusAccepted:
		return 2
	case RequestStatusPending:
		return 1
	default:
		return 0
	}
}

// TransitionActor identifies who drives a status change.
type TransitionActor string

const (
	ActorStudent TransitionActor = "student"
	ActorMentor  TransitionActor = "mentor"
	// ActorDedup is the duplicate cleanup job.
	ActorDedup TransitionActor = "dedup"
)

var allowedTransitions = map[RequestStatus]map[RequestStatus][]TransitionActor{
	RequestStatusPending: {
		RequestStatusAccepted: {ActorMentor},
		RequestStatusDeclined: {ActorMentor, ActorDedup},
	},
	RequestStatusAccepted: {
		RequestStatusDeclined:  {ActorDedup},
		RequestStatusCompleted: {ActorMentor, ActorStudent},
	},
}

// TransitionExists reports whether any actor may move a request from one status to another.
func TransitionExists(from, to RequestStatus) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// CanTransition reports whether actor may move a request from one status to another.
func CanTransition(from, to RequestStatus, actor TransitionActor) bool {
	for _, a := range allowedTransitions[from][to] {
		if a == actor {
			return true
		}
	}
	return false
}

// CheckTransition returns INVALID_TRANSITION when no edge leads from one status to the
// other, and FORBIDDEN when the edge exists but belongs to another actor.
func CheckTransition(from, to RequestStatus, actor TransitionActor) error {
	if !TransitionExists(from, to) {
		return NewConflictError(CodeInvalidTransition,
			fmt.Sprintf("Cannot change request from %s to %s", from, to))
	}
	if !CanTransition(from, to, actor) {
		return NewForbiddenError(fmt.Sprintf("Only an allowed participant can move a request to %s", to))
	}
	return nil
}

// MentorshipRequest is one student→mentor relationship attempt.
type MentorshipRequest struct {
	ID               uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID        uuid.UUID     `gorm:"type:uuid;not null;index:idx_mentorship_pair" json:"student_id"`
	Student          *User         `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
	MentorID         uuid.UUID     `gorm:"type:uuid;not null;index:idx_mentorship_pair;index:idx_mentorship_mentor_status" json:"mentor_id"`
	Mentor           *User         `gorm:"foreignKey:MentorID;constraint:OnDelete:CASCADE" json:"mentor,omitempty"`
	FieldOfInterest  string        `gorm:"type:text;not null" json:"field_of_interest"`
	Description      string        `gorm:"type:text" json:"description"`
	Goals            string        `gorm:"type:text" json:"goals"`
	PreferredTime    string        `json:"preferred_time"`
	Status           RequestStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_mentorship_mentor_status" json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	ChatClosedAt     *time.Time    `json:"chat_closed_at"`
	ChatClosedReason *string       `gorm:"type:text" json:"chat_closed_reason"`
}

// TableName specifies the table name for GORM
func (MentorshipRequest) TableName() string {
	return "mentorship_requests"
}

// BeforeCreate assigns a UUID when the caller did not.
func (r *MentorshipRequest) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Outranks reports whether r should survive over other when both belong to the
// same student/mentor pair. Higher status rank wins, then the newer row, then the
// larger id so the ordering is total.
func (r *MentorshipRequest) Outranks(other *MentorshipRequest) bool {
	ra, rb := StatusRank(r.Status), StatusRank(other.Status)
	if ra != rb {
		return ra > rb
	}
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.After(other.CreatedAt)
	}
	return r.ID.String() > other.ID.String()
}

// ParticipantRole is how a user relates to a request.
type ParticipantRole string

const (
	// ParticipantStudent is the requesting student.
	ParticipantStudent ParticipantRole = "student"
	// ParticipantMentor is the requested mentor.
	ParticipantMentor ParticipantRole = "mentor"
	// ParticipantNone is anyone else.
	ParticipantNone ParticipantRole = ""
)

// RoleOf returns the participant role userID holds on the request.
func (r *MentorshipRequest) RoleOf(userID uuid.UUID) ParticipantRole {
	switch userID {
	case r.StudentID:
		return ParticipantStudent
	case r.MentorID:
		return ParticipantMentor
	}
	return ParticipantNone
}

// IsParticipant reports whether userID is the student or the mentor.
func (r *MentorshipRequest) IsParticipant(userID uuid.UUID) bool {
	return r.RoleOf(userID) != ParticipantNone
}

// ChatClosed reports whether the mentor has closed the chat.
func (r *MentorshipRequest) ChatClosed() bool {
	return r.ChatClosedAt != nil
}

// ChatWriteError returns nil when messages may be written, otherwise the conflict
// explaining why not. Closure is checked first: a closed chat stays closed whatever
// the status.
func (r *MentorshipRequest) ChatWriteError() error {
	if r.ChatClosed() {
		return NewConflictError(CodeChatClosed, "Chat has been closed by the mentor")
	}
	if r.Status != RequestStatusAccepted {
		return NewConflictError(CodeChatNotAccepted, "Chat allowed only after request is accepted")
	}
	return nil
}

// Message is a chat message exchanged on an accepted mentorship request.
type Message struct {
	ID                  uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	MentorshipRequestID uuid.UUID          `gorm:"type:uuid;not null;index" json:"mentorship_request_id"`
	MentorshipRequest   *MentorshipRequest `gorm:"foreignKey:MentorshipRequestID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID            uuid.UUID          `gorm:"type:uuid;not null;index" json:"sender_id"`
	Content             string             `gorm:"type:text;not null" json:"content"`
	IsRead              bool               `gorm:"default:false" json:"is_read"`
	CreatedAt           time.Time          `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns a UUID when the caller did not.
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MentorshipReview is a student's rating of a completed mentorship.
type MentorshipReview struct {
	ID                  uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	MentorshipRequestID uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:review_unique_per_request" json:"mentorship_request_id"`
	MentorshipRequest   *MentorshipRequest `gorm:"foreignKey:MentorshipRequestID;constraint:OnDelete:CASCADE" json:"-"`
	ReviewerID          uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:review_unique_per_request" json:"reviewer_id"`
	Rating              int                `gorm:"not null;check:rating_between_1_5,rating >= 1 AND rating <= 5" json:"rating"`
	Comment             string             `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
}

// TableName specifies the table name for GORM
func (MentorshipReview) TableName() string {
	return "mentorship_reviews"
}

// BeforeCreate assigns a UUID when the caller did not.
func (r *MentorshipReview) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
