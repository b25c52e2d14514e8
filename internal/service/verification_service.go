package service

import (
	"context"

	"mentorlink/internal/models"
	"mentorlink/internal/notifications"
	"mentorlink/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const revokedNote = "Verification revoked by admin"

// VerificationService runs the admin account verification workflow.
type VerificationService struct {
	db            *gorm.DB
	users         repository.UserRepository
	verifications repository.VerificationRepository
	notifier      *notifications.Notifier
}

// NewVerificationService returns a new VerificationService.
func NewVerificationService(
	db *gorm.DB,
	users repository.UserRepository,
	verifications repository.VerificationRepository,
	notifier *notifications.Notifier,
) *VerificationService {
	return &VerificationService{db: db, users: users, verifications: verifications, notifier: notifier}
}

// Submit opens a pending verification request for a newly registered user.
func (s *VerificationService) Submit(ctx context.Context, userID uuid.UUID) (*models.VerificationRequest, error) {
	v := &models.VerificationRequest{UserID: userID, Status: models.VerificationStatusPending}
	if err := s.verifications.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// List returns verification requests, oldest first. An empty status lists all.
func (s *VerificationService) List(ctx context.Context, status models.VerificationStatus, limit, offset int) ([]models.VerificationRequest, error) {
	return s.verifications.List(ctx, status, limit, offset)
}

// ListUsers returns accounts with their verification state for the admin dashboard.
func (s *VerificationService) ListUsers(ctx context.Context, f repository.UserFilter) ([]models.User, int64, error) {
	if f.Role != "" && !f.Role.Valid() {
		return nil, 0, models.NewValidationError("Invalid role filter")
	}
	return s.users.List(ctx, f)
}

// Approve marks the request approved and verifies its user atomically.
func (s *VerificationService) Approve(ctx context.Context, id, adminID uuid.UUID) (*models.VerificationRequest, error) {
	var userID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		verifications := s.verifications.WithTx(tx)
		v, err := verifications.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if v.Status != models.VerificationStatusPending {
			return models.NewConflictError(models.CodeConflict, "Request already processed")
		}
		changed, err := verifications.Review(ctx, id, models.VerificationStatusApproved, adminID, "")
		if err != nil {
			return err
		}
		if !changed {
			return models.NewConflictError(models.CodeConflict, "Request already processed")
		}
		userID = v.UserID
		return s.users.WithTx(tx).SetVerified(ctx, v.UserID, true, &adminID)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, userID, adminID, models.VerificationStatusApproved)
	return s.verifications.GetByID(ctx, id)
}

// Reject marks a pending request rejected with the admin's notes.
func (s *VerificationService) Reject(ctx context.Context, id, adminID uuid.UUID, notes string) (*models.VerificationRequest, error) {
	v, err := s.verifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := s.verifications.Review(ctx, id, models.VerificationStatusRejected, adminID, notes)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, models.NewConflictError(models.CodeConflict, "Request already processed")
	}

	s.notify(ctx, v.UserID, adminID, models.VerificationStatusRejected)
	return s.verifications.GetByID(ctx, id)
}

// Unverify revokes a user's verification and rejects their approved requests.
func (s *VerificationService) Unverify(ctx context.Context, userID, adminID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).SetVerified(ctx, userID, false, nil); err != nil {
			return err
		}
		_, err := s.verifications.WithTx(tx).RevokeApproved(ctx, userID, adminID, revokedNote)
		return err
	})
	if err != nil {
		return err
	}

	s.notify(ctx, userID, adminID, models.VerificationStatusRejected)
	return nil
}

func (s *VerificationService) notify(ctx context.Context, userID, adminID uuid.UUID, status models.VerificationStatus) {
	s.notifier.Notify(ctx, notifications.Event{
		Type:    notifications.EventVerification,
		ActorID: adminID,
		Payload: map[string]string{"status": string(status)},
	}, userID)
}
