package seed

import (
	"fmt"
	"log/slog"
	"time"

	"mentorlink/internal/config"
	"mentorlink/internal/middleware"
	"mentorlink/internal/models"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	Alumni   int
	Students int
	// Duplicates is the number of student/mentor pairs given a second active request.
	Duplicates int
	Clean      bool
	SkipBcrypt bool
	// RandSeed makes a run reproducible. Zero uses the current time.
	RandSeed int64
	// MentorCapacity caps seeded accepted requests per mentor.
	MentorCapacity int
}

// Summary reports what a seeding run created.
type Summary struct {
	Alumni     int
	Students   int
	Requests   int
	Duplicates int
	Messages   int
}

// Run populates db with demo alumni, students, requests and chat messages.
func Run(db *gorm.DB, opts Options) (*Summary, error) {
	if opts.MentorCapacity <= 0 {
		opts.MentorCapacity = config.DefaultMentorCapacity
	}
	if opts.Alumni <= 0 || opts.Students <= 0 {
		return nil, fmt.Errorf("alumni and students must be positive")
	}

	if opts.Clean {
		if err := ClearAll(db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	f, err := NewFactory(db, opts.RandSeed, opts.SkipBcrypt)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	var mentors, students []*models.User

	for i := 0; i < opts.Alumni; i++ {
		u, err := f.CreateUser(models.RoleAlumni)
		if err != nil {
			return nil, fmt.Errorf("create alumni: %w", err)
		}
		if _, err := f.CreateAlumniProfile(u, i%3 != 2); err != nil {
			return nil, fmt.Errorf("create alumni profile: %w", err)
		}
		mentors = append(mentors, u)
	}
	summary.Alumni = len(mentors)

	for i := 0; i < opts.Students; i++ {
		u, err := f.CreateUser(models.RoleStudent)
		if err != nil {
			return nil, fmt.Errorf("create student: %w", err)
		}
		if _, err := f.CreateStudentProfile(u); err != nil {
			return nil, fmt.Errorf("create student profile: %w", err)
		}
		students = append(students, u)
	}
	summary.Students = len(students)

	now := time.Now().UTC()
	accepted := make(map[int]int, len(mentors))
	type pair struct{ student, mentor *models.User }
	var pairs []pair

	for _, student := range students {
		mi := f.faker.Number(0, len(mentors)-1)
		mentor := mentors[mi]

		status := pickStatus(f)
		if status == models.RequestStatusAccepted {
			if accepted[mi] >= opts.MentorCapacity {
				status = models.RequestStatusPending
			} else {
				accepted[mi]++
			}
		}

		createdAt := now.Add(-time.Duration(f.faker.Number(1, 60*24)) * time.Minute)
		req, err := f.CreateRequest(student, mentor, status, createdAt)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		summary.Requests++
		if status.Active() {
			pairs = append(pairs, pair{student, mentor})
		}

		if status == models.RequestStatusAccepted {
			for j := 0; j < 3; j++ {
				sender := student
				if j%2 == 1 {
					sender = mentor
				}
				if _, err := f.CreateMessage(req, sender, createdAt.Add(time.Duration(j+1)*time.Minute)); err != nil {
					return nil, fmt.Errorf("create message: %w", err)
				}
				summary.Messages++
			}
		}
	}

	// Older pending copies on already-active pairs give the duplicate cleanup work to do.
	for i := 0; i < opts.Duplicates && i < len(pairs); i++ {
		p := pairs[i]
		createdAt := now.Add(-time.Duration(90+i) * 24 * time.Hour)
		if _, err := f.CreateRequest(p.student, p.mentor, models.RequestStatusPending, createdAt); err != nil {
			return nil, fmt.Errorf("create duplicate request: %w", err)
		}
		summary.Requests++
		summary.Duplicates++
	}

	middleware.Logger.Info("seed complete",
		slog.Int("alumni", summary.Alumni),
		slog.Int("students", summary.Students),
		slog.Int("requests", summary.Requests),
		slog.Int("duplicates", summary.Duplicates),
		slog.Int("messages", summary.Messages),
	)
	return summary, nil
}

func pickStatus(f *Factory) models.RequestStatus {
	switch n := f.faker.Number(0, 9); {
	case n < 5:
		return models.RequestStatusPending
	case n < 8:
		return models.RequestStatusAccepted
	case n < 9:
		return models.RequestStatusDeclined
	default:
		return models.RequestStatusCompleted
	}
}

// ClearAll removes all non-admin data, children first.
func ClearAll(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		stmts := []string{
			"DELETE FROM mentorship_reviews",
			"DELETE FROM messages",
			"DELETE FROM mentorship_requests",
			"DELETE FROM verification_requests",
			"DELETE FROM student_profiles",
			"DELETE FROM alumni_profiles",
		}
		for _, stmt := range stmts {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return tx.Where("role <> ?", models.RoleAdmin).Delete(&models.User{}).Error
	})
}
