package service

import (
	"context"
	"strings"
	"time"

	"mentorlink/internal/models"
	"mentorlink/internal/repository"
	"mentorlink/internal/validation"

	"github.com/google/uuid"
)

// ProfileService manages alumni and student profiles and the alumni directory.
type ProfileService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
}

// AlumniProfileInput is the editable part of an alumni profile.
type AlumniProfileInput struct {
	CurrentPosition   string   `json:"current_position"`
	CurrentCompany    string   `json:"current_company"`
	Industry          string   `json:"industry"`
	GraduationYear    int      `json:"graduation_year"`
	Bio               string   `json:"bio"`
	ExpertiseAreas    []string `json:"expertise_areas"`
	MentorshipAreas   []string `json:"mentorship_areas"`
	IsMentorAvailable bool     `json:"is_mentor_available"`
	IsPublicProfile   *bool    `json:"is_public_profile"`
	LinkedinURL       string   `json:"linkedin_url"`
}

// StudentProfileInput is the editable part of a student profile.
type StudentProfileInput struct {
	RollNumber  string   `json:"roll_number"`
	Department  string   `json:"department"`
	CurrentYear int      `json:"current_year"`
	CareerGoals string   `json:"career_goals"`
	Interests   []string `json:"interests"`
}

// NewProfileService returns a new ProfileService.
func NewProfileService(users repository.UserRepository, profiles repository.ProfileRepository) *ProfileService {
	return &ProfileService{users: users, profiles: profiles}
}

// Alumni returns the caller's own alumni profile.
func (s *ProfileService) Alumni(ctx context.Context, userID uuid.UUID) (*models.AlumniProfile, error) {
	return s.profiles.GetAlumni(ctx, userID)
}

// PublicAlumni returns an alumni profile visible to anyone. Hidden profiles and
// unverified users read as not found.
func (s *ProfileService) PublicAlumni(ctx context.Context, userID uuid.UUID) (*models.AlumniProfile, error) {
	p, err := s.profiles.GetAlumni(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !p.IsPublicProfile || p.User == nil || !p.User.IsVerified {
		return nil, models.NewNotFoundError("Alumni profile", userID)
	}
	return p, nil
}

// SaveAlumni creates or replaces the caller's alumni profile.
func (s *ProfileService) SaveAlumni(ctx context.Context, userID uuid.UUID, in AlumniProfileInput) (*models.AlumniProfile, error) {
	if err := s.requireRole(ctx, userID, models.RoleAlumni); err != nil {
		return nil, err
	}
	if err := validation.ValidateLinkedinURL(in.LinkedinURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateGraduationYear(in.GraduationYear); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	public := true
	if in.IsPublicProfile != nil {
		public = *in.IsPublicProfile
	}
	now := time.Now().UTC()
	p := &models.AlumniProfile{
		UserID:            userID,
		CurrentPosition:   strings.TrimSpace(in.CurrentPosition),
		CurrentCompany:    strings.TrimSpace(in.CurrentCompany),
		Industry:          strings.TrimSpace(in.Industry),
		GraduationYear:    in.GraduationYear,
		Bio:               strings.TrimSpace(in.Bio),
		ExpertiseAreas:    models.StringSlice(cleanList(in.ExpertiseAreas)),
		MentorshipAreas:   models.StringSlice(cleanList(in.MentorshipAreas)),
		IsMentorAvailable: in.IsMentorAvailable,
		IsPublicProfile:   public,
		LinkedinURL:       strings.TrimSpace(in.LinkedinURL),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.profiles.UpsertAlumni(ctx, p); err != nil {
		return nil, err
	}
	return s.profiles.GetAlumni(ctx, userID)
}

// Student returns the caller's own student profile.
func (s *ProfileService) Student(ctx context.Context, userID uuid.UUID) (*models.StudentProfile, error) {
	return s.profiles.GetStudent(ctx, userID)
}

// SaveStudent creates or replaces the caller's student profile.
func (s *ProfileService) SaveStudent(ctx context.Context, userID uuid.UUID, in StudentProfileInput) (*models.StudentProfile, error) {
	if err := s.requireRole(ctx, userID, models.RoleStudent); err != nil {
		return nil, err
	}
	if in.CurrentYear < 0 || in.CurrentYear > 6 {
		return nil, models.NewValidationError("current year must be between 1 and 6, or 0 when unknown")
	}

	dept := strings.TrimSpace(in.Department)
	if dept == "" {
		dept = "Computer Science"
	}
	now := time.Now().UTC()
	p := &models.StudentProfile{
		UserID:      userID,
		RollNumber:  strings.TrimSpace(in.RollNumber),
		Department:  dept,
		CurrentYear: in.CurrentYear,
		CareerGoals: strings.TrimSpace(in.CareerGoals),
		Interests:   models.StringSlice(cleanList(in.Interests)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.profiles.UpsertStudent(ctx, p); err != nil {
		return nil, err
	}
	return s.profiles.GetStudent(ctx, userID)
}

// Directory lists verified, public alumni.
func (s *ProfileService) Directory(ctx context.Context, f repository.DirectoryFilter) ([]models.AlumniProfile, int64, error) {
	return s.profiles.Directory(ctx, f)
}

func (s *ProfileService) requireRole(ctx context.Context, userID uuid.UUID, role models.UserRole) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.Role != role {
		return models.NewForbiddenError("This profile type is not available for your role")
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
