// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"mentorlink/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

var (
	industries = []string{"Fintech", "Healthcare", "E-commerce", "Cloud", "Gaming", "Education", "Security"}
	expertise  = []string{"Go", "Distributed Systems", "Machine Learning", "Frontend", "Mobile", "DevOps", "Data Engineering", "Product Management"}
	fields     = []string{"Backend Engineering", "Career Guidance", "Interview Preparation", "Open Source", "Startups", "Research"}
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db           *gorm.DB
	faker        *gofakeit.Faker
	passwordHash string
}

// NewFactory creates a Factory bound to db. A zero seed uses the current time.
func NewFactory(db *gorm.DB, seed int64, skipBcrypt bool) (*Factory, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &Factory{db: db, faker: gofakeit.New(seed), passwordHash: DemoPassword}
	if !skipBcrypt {
		hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash demo password: %w", err)
		}
		f.passwordHash = string(hash)
	}
	return f, nil
}

// CreateUser persists a verified user with the given role.
func (f *Factory) CreateUser(role models.UserRole, overrides ...func(*models.User)) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		Name:         f.faker.Name(),
		Email:        strings.ToLower(fmt.Sprintf("%s.%d@%s", f.faker.Username(), f.faker.Number(1000, 9999), "mentorlink.dev")),
		PasswordHash: f.passwordHash,
		Role:         role,
		IsVerified:   true,
		VerifiedAt:   &now,
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateAlumniProfile persists a public alumni profile for user.
func (f *Factory) CreateAlumniProfile(user *models.User, available bool) (*models.AlumniProfile, error) {
	profile := &models.AlumniProfile{
		UserID:            user.ID,
		CurrentPosition:   f.faker.JobTitle(),
		CurrentCompany:    f.faker.Company(),
		Industry:          f.faker.RandomString(industries),
		GraduationYear:    f.faker.Number(2000, time.Now().Year()-1),
		Bio:               f.faker.Sentence(14),
		ExpertiseAreas:    models.StringSlice{f.faker.RandomString(expertise), f.faker.RandomString(expertise)},
		MentorshipAreas:   models.StringSlice{f.faker.RandomString(fields)},
		IsMentorAvailable: available,
		IsPublicProfile:   true,
	}
	profile.ExpertiseAreas = dedupe(profile.ExpertiseAreas)
	if err := f.db.Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// CreateStudentProfile persists a student profile for user.
func (f *Factory) CreateStudentProfile(user *models.User) (*models.StudentProfile, error) {
	profile := &models.StudentProfile{
		UserID:      user.ID,
		RollNumber:  fmt.Sprintf("CS-%05d", f.faker.Number(1, 99999)),
		Department:  "Computer Science",
		CurrentYear: f.faker.Number(1, 4),
		CareerGoals: f.faker.Sentence(10),
		Interests:   models.StringSlice{f.faker.RandomString(expertise)},
	}
	if err := f.db.Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// CreateRequest persists a mentorship request created at createdAt.
func (f *Factory) CreateRequest(student, mentor *models.User, status models.RequestStatus, createdAt time.Time) (*models.MentorshipRequest, error) {
	req := &models.MentorshipRequest{
		StudentID:       student.ID,
		MentorID:        mentor.ID,
		FieldOfInterest: f.faker.RandomString(fields),
		Description:     f.faker.Paragraph(1, 2, 10, " "),
		Goals:           f.faker.Sentence(8),
		PreferredTime:   f.faker.RandomString([]string{"Weekday evenings", "Weekends", "Flexible"}),
		Status:          status,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if err := f.db.Omit("Student", "Mentor").Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// CreateMessage persists a chat message on an accepted request.
func (f *Factory) CreateMessage(req *models.MentorshipRequest, sender *models.User, at time.Time) (*models.Message, error) {
	msg := &models.Message{
		MentorshipRequestID: req.ID,
		SenderID:            sender.ID,
		Content:             f.faker.Sentence(9),
		CreatedAt:           at,
	}
	if err := f.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func dedupe(in models.StringSlice) models.StringSlice {
	seen := make(map[string]struct{}, len(in))
	out := make(models.StringSlice, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
