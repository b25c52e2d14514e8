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

// MentorshipFilter narrows admin listings of mentorship requests.
type MentorshipFilter struct {
	Status    models.RequestStatus
	MentorID  uuid.UUID
	StudentID uuid.UUID
	Limit     int
	Offset    int
}

// MentorshipRepository defines persistence operations for mentorship requests.
type MentorshipRepository interface {
	Create(ctx context.Context, req *models.MentorshipRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MentorshipRequest, error)
	// GetForUpdate loads the request and locks its row for the enclosing transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.MentorshipRequest, error)
	ListForMentor(ctx context.Context, mentorID uuid.UUID, status models.RequestStatus) ([]models.MentorshipRequest, error)
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.MentorshipRequest, error)
	List(ctx context.Context, f MentorshipFilter) ([]models.MentorshipRequest, int64, error)
	FindActiveForPair(ctx context.Context, studentID, mentorID uuid.UUID) (*models.MentorshipRequest, error)
	CountAccepted(ctx context.Context, mentorID uuid.UUID) (int64, error)

	// LockMentor takes a row lock on the mentor's user row for the rest of the
	// enclosing transaction. Accepts for one mentor serialize on it.
	LockMentor(ctx context.Context, mentorID uuid.UUID) error
	// UpdateStatus moves the request to `to` only if its current status is in
	// `from`. It reports whether a row changed.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []models.RequestStatus, to models.RequestStatus, at time.Time) (bool, error)
	// CloseChat stamps the closure only if the chat is still open. It reports
	// whether a row changed.
	CloseChat(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)

	// ListDuplicateCandidates returns every row belonging to a (student, mentor)
	// pair with more than one row, locked for update.
	ListDuplicateCandidates(ctx context.Context) ([]models.MentorshipRequest, error)
	// DeclineActive declines the given rows that are still pending or accepted.
	DeclineActive(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)

	// Transaction runs fn against a repository bound to one database transaction.
	Transaction(ctx context.Context, fn func(tx MentorshipRepository) error) error
}

type mentorshipRepository struct {
	db *gorm.DB
}

// NewMentorshipRepository returns a new MentorshipRepository implementation.
func NewMentorshipRepository(db *gorm.DB) MentorshipRepository {
	return &mentorshipRepository{db: db}
}

var activeStatuses = []models.RequestStatus{models.RequestStatusPending, models.RequestStatusAccepted}

func (r *mentorshipRepository) Create(ctx context.Context, req *models.MentorshipRequest) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(req).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *mentorshipRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MentorshipRequest, error) {
	var req models.MentorshipRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Mentorship request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *mentorshipRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.MentorshipRequest, error) {
	var req models.MentorshipRequest
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Mentorship request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *mentorshipRepository) ListForMentor(ctx context.Context, mentorID uuid.UUID, status models.RequestStatus) ([]models.MentorshipRequest, error) {
	var out []models.MentorshipRequest
	q := r.db.WithContext(ctx).
		Preload("Student").
		Where("mentor_id = ?", mentorID).
		Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *mentorshipRepository) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.MentorshipRequest, error) {
	var out []models.MentorshipRequest
	if err := r.db.WithContext(ctx).
		Preload("Mentor").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *mentorshipRepository) List(ctx context.Context, f MentorshipFilter) ([]models.MentorshipRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.MentorshipRequest{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.MentorID != uuid.Nil {
		q = q.Where("mentor_id = ?", f.MentorID)
	}
	if f.StudentID != uuid.Nil {
		q = q.Where("student_id = ?", f.StudentID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var out []models.MentorshipRequest
	if err := q.Preload("Student").Preload("Mentor").
		Order("created_at DESC").
		Limit(f.Limit).Offset(f.Offset).
		Find(&out).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return out, total, nil
}

// FindActiveForPair returns the newest active request for the pair, or nil.
func (r *mentorshipRepository) FindActiveForPair(ctx context.Context, studentID, mentorID uuid.UUID) (*models.MentorshipRequest, error) {
	var req models.MentorshipRequest
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND mentor_id = ? AND status IN ?", studentID, mentorID, activeStatuses).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *mentorshipRepository) CountAccepted(ctx context.Context, mentorID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&models.MentorshipRequest{}).
		Where("mentor_id = ? AND status = ?", mentorID, models.RequestStatusAccepted).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *mentorshipRepository) LockMentor(ctx context.Context, mentorID uuid.UUID) error {
	var mentor models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&mentor, "id = ?", mentorID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Mentor", mentorID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *mentorshipRepository) UpdateStatus(
	ctx context.Context, id uuid.UUID, from []models.RequestStatus, to models.RequestStatus, at time.Time,
) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.MentorshipRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": at})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *mentorshipRepository) CloseChat(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.MentorshipRequest{}).
		Where("id = ? AND chat_closed_at IS NULL", id).
		Updates(map[string]any{
			"chat_closed_at":     at,
			"chat_closed_reason": reason,
			"updated_at":         at,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *mentorshipRepository) ListDuplicateCandidates(ctx context.Context) ([]models.MentorshipRequest, error) {
	pairs := r.db.Model(&models.MentorshipRequest{}).
		Select("student_id, mentor_id").
		Group("student_id, mentor_id").
		Having("COUNT(*) > 1")

	var rows []models.MentorshipRequest
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("(student_id, mentor_id) IN (?)", pairs).
		Order("student_id, mentor_id, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *mentorshipRepository) DeclineActive(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.MentorshipRequest{}).
		Where("id IN ? AND status IN ?", ids, activeStatuses).
		Updates(map[string]any{"status": models.RequestStatusDeclined, "updated_at": at})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *mentorshipRepository) Transaction(ctx context.Context, fn func(tx MentorshipRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&mentorshipRepository{db: tx})
	})
}
