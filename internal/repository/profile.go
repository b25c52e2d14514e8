package repository

import (
	"context"
	"errors"
	"strings"

	"mentorlink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DirectoryFilter narrows the alumni directory.
type DirectoryFilter struct {
	Search        string
	Industry      string
	AvailableOnly bool
	Limit         int
	Offset        int
}

// ProfileRepository defines persistence operations for alumni and student profiles.
type ProfileRepository interface {
	GetAlumni(ctx context.Context, userID uuid.UUID) (*models.AlumniProfile, error)
	UpsertAlumni(ctx context.Context, p *models.AlumniProfile) error
	GetStudent(ctx context.Context, userID uuid.UUID) (*models.StudentProfile, error)
	UpsertStudent(ctx context.Context, p *models.StudentProfile) error
	Directory(ctx context.Context, f DirectoryFilter) ([]models.AlumniProfile, int64, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetAlumni(ctx context.Context, userID uuid.UUID) (*models.AlumniProfile, error) {
	var p models.AlumniProfile
	if err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Alumni profile", userID)
		}
		return nil, models.NewInternalError(err)
	}
	return &p, nil
}

// UpsertAlumni inserts the profile or overwrites the existing one for the same user.
func (r *profileRepository) UpsertAlumni(ctx context.Context, p *models.AlumniProfile) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_position", "current_company", "industry", "graduation_year", "bio",
			"expertise_areas", "mentorship_areas", "is_mentor_available", "is_public_profile",
			"linkedin_url", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *profileRepository) GetStudent(ctx context.Context, userID uuid.UUID) (*models.StudentProfile, error) {
	var p models.StudentProfile
	if err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Student profile", userID)
		}
		return nil, models.NewInternalError(err)
	}
	return &p, nil
}

func (r *profileRepository) UpsertStudent(ctx context.Context, p *models.StudentProfile) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"roll_number", "department", "current_year", "career_goals", "interests", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Directory lists public alumni profiles of verified users.
func (r *profileRepository) Directory(ctx context.Context, f DirectoryFilter) ([]models.AlumniProfile, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AlumniProfile{}).
		Joins("JOIN users ON users.id = alumni_profiles.user_id").
		Where("alumni_profiles.is_public_profile = ? AND users.is_verified = ?", true, true)

	if f.AvailableOnly {
		q = q.Where("alumni_profiles.is_mentor_available = ?", true)
	}
	if f.Industry != "" {
		q = q.Where("LOWER(alumni_profiles.industry) = ?", strings.ToLower(f.Industry))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where(
			"LOWER(users.name) LIKE ? OR LOWER(alumni_profiles.current_company) LIKE ? OR LOWER(alumni_profiles.current_position) LIKE ?",
			like, like, like,
		)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var out []models.AlumniProfile
	if err := q.Preload("User").
		Order("alumni_profiles.updated_at DESC").
		Limit(f.Limit).Offset(f.Offset).
		Find(&out).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return out, total, nil
}
