package service

import (
	"context"

	"mentorlink/internal/models"
	"mentorlink/internal/repository"
	"mentorlink/internal/validation"

	"github.com/google/uuid"
)

// ReviewService handles student reviews of completed mentorships.
type ReviewService struct {
	requests repository.MentorshipRepository
	reviews  repository.ReviewRepository
}

// CreateReviewInput is the input for reviewing a mentorship.
type CreateReviewInput struct {
	RequestID  uuid.UUID
	ReviewerID uuid.UUID
	Rating     int
	Comment    string
}

// MentorReviews is a mentor's reviews with their aggregate.
type MentorReviews struct {
	Reviews []models.MentorshipReview `json:"reviews"`
	Summary repository.ReviewSummary  `json:"summary"`
}

// NewReviewService returns a new ReviewService.
func NewReviewService(requests repository.MentorshipRepository, reviews repository.ReviewRepository) *ReviewService {
	return &ReviewService{requests: requests, reviews: reviews}
}

// Create records the student's single review of a completed mentorship.
func (s *ReviewService) Create(ctx context.Context, in CreateReviewInput) (*models.MentorshipReview, error) {
	if err := validation.ValidateRating(in.Rating); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	comment, err := validation.NormalizeReviewComment(in.Comment)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	req, err := s.requests.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.StudentID != in.ReviewerID {
		return nil, models.NewForbiddenError("Only the student of this mentorship can review it")
	}
	if req.Status != models.RequestStatusCompleted {
		return nil, models.NewConflictError(models.CodeReviewNotAllowed, "Only completed mentorships can be reviewed")
	}

	existing, err := s.reviews.GetForRequest(ctx, in.RequestID, in.ReviewerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError(models.CodeDuplicateReview, "You have already reviewed this mentorship")
	}

	review := &models.MentorshipReview{
		MentorshipRequestID: in.RequestID,
		ReviewerID:          in.ReviewerID,
		Rating:              in.Rating,
		Comment:             comment,
	}
	// the unique index still catches a concurrent duplicate
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// ForMentor returns a mentor's reviews, newest first, with the rating summary.
func (s *ReviewService) ForMentor(ctx context.Context, mentorID uuid.UUID) (*MentorReviews, error) {
	reviews, err := s.reviews.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, err
	}
	summary, err := s.reviews.SummaryForMentor(ctx, mentorID)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []models.MentorshipReview{}
	}
	return &MentorReviews{Reviews: reviews, Summary: summary}, nil
}
