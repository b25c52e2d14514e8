package repository

import (
	"context"
	"errors"

	"mentorlink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewSummary aggregates a mentor's ratings.
type ReviewSummary struct {
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

// ReviewRepository defines persistence operations for mentorship reviews.
type ReviewRepository interface {
	// Create fails with DUPLICATE_REVIEW when the reviewer already rated the request.
	Create(ctx context.Context, review *models.MentorshipReview) error
	GetForRequest(ctx context.Context, requestID, reviewerID uuid.UUID) (*models.MentorshipReview, error)
	ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]models.MentorshipReview, error)
	SummaryForMentor(ctx context.Context, mentorID uuid.UUID) (ReviewSummary, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository returns a new ReviewRepository implementation.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.MentorshipReview) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(review).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError(models.CodeDuplicateReview, "You have already reviewed this mentorship")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// GetForRequest returns nil, nil when no review exists.
func (r *reviewRepository) GetForRequest(ctx context.Context, requestID, reviewerID uuid.UUID) (*models.MentorshipReview, error) {
	var review models.MentorshipReview
	err := r.db.WithContext(ctx).
		Where("mentorship_request_id = ? AND reviewer_id = ?", requestID, reviewerID).
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &review, nil
}

func (r *reviewRepository) mentorReviews(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.MentorshipReview{}).
		Joins("JOIN mentorship_requests ON mentorship_requests.id = mentorship_reviews.mentorship_request_id")
}

func (r *reviewRepository) ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]models.MentorshipReview, error) {
	var out []models.MentorshipReview
	if err := r.mentorReviews(ctx).
		Where("mentorship_requests.mentor_id = ?", mentorID).
		Order("mentorship_reviews.created_at DESC").
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *reviewRepository) SummaryForMentor(ctx context.Context, mentorID uuid.UUID) (ReviewSummary, error) {
	var row struct {
		Count   int64
		Average *float64
	}
	if err := r.mentorReviews(ctx).
		Select("COUNT(*) AS count, AVG(mentorship_reviews.rating) AS average").
		Where("mentorship_requests.mentor_id = ?", mentorID).
		Scan(&row).Error; err != nil {
		return ReviewSummary{}, models.NewInternalError(err)
	}
	out := ReviewSummary{Count: row.Count}
	if row.Average != nil {
		out.Average = *row.Average
	}
	return out, nil
}
