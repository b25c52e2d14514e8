package repository

import (
	"context"
	"errors"
	"time"

	"mentorlink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerificationRepository defines persistence operations for verification requests.
type VerificationRepository interface {
	Create(ctx context.Context, v *models.VerificationRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error)
	List(ctx context.Context, status models.VerificationStatus, limit, offset int) ([]models.VerificationRequest, error)
	// Review moves a pending request to status. It reports whether a row changed.
	Review(ctx context.Context, id uuid.UUID, status models.VerificationStatus, reviewer uuid.UUID, notes string) (bool, error)
	// RevokeApproved rejects the user's approved requests after an admin unverifies them.
	RevokeApproved(ctx context.Context, userID, reviewer uuid.UUID, notes string) (int64, error)
	// WithTx returns a repository bound to tx.
	WithTx(tx *gorm.DB) VerificationRepository
}

type verificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository returns a new VerificationRepository implementation.
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) WithTx(tx *gorm.DB) VerificationRepository {
	return &verificationRepository{db: tx}
}

func (r *verificationRepository) Create(ctx context.Context, v *models.VerificationRequest) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(v).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *verificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	var v models.VerificationRequest
	if err := r.db.WithContext(ctx).Preload("User").First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Verification request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &v, nil
}

func (r *verificationRepository) List(ctx context.Context, status models.VerificationStatus, limit, offset int) ([]models.VerificationRequest, error) {
	var out []models.VerificationRequest
	q := r.db.WithContext(ctx).Preload("User").Order("created_at ASC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *verificationRepository) Review(
	ctx context.Context, id uuid.UUID, status models.VerificationStatus, reviewer uuid.UUID, notes string,
) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.VerificationRequest{}).
		Where("id = ? AND status = ?", id, models.VerificationStatusPending).
		Updates(map[string]any{
			"status":       status,
			"reviewed_by":  reviewer,
			"review_notes": notes,
			"reviewed_at":  now,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *verificationRepository) RevokeApproved(ctx context.Context, userID, reviewer uuid.UUID, notes string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VerificationRequest{}).
		Where("user_id = ? AND status = ?", userID, models.VerificationStatusApproved).
		Updates(map[string]any{
			"status":       models.VerificationStatusRejected,
			"reviewed_by":  reviewer,
			"review_notes": notes,
			"reviewed_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
