package service

import (
	"context"
	"testing"

	"mentorlink/internal/models"
	"mentorlink/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileService_AlumniUpsertAndDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewProfileService(f.users, repository.NewProfileRepository(f.db))

	alum := f.user(t, "alum@uni.edu", models.RoleAlumni)
	student := f.user(t, "s@uni.edu", models.RoleStudent)

	_, err := svc.SaveAlumni(ctx, student.ID, AlumniProfileInput{})
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))

	_, err = svc.SaveAlumni(ctx, alum.ID, AlumniProfileInput{LinkedinURL: "https://example.com/me"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	p, err := svc.SaveAlumni(ctx, alum.ID, AlumniProfileInput{
		CurrentCompany:    "Acme",
		Industry:          "Fintech",
		GraduationYear:    2015,
		ExpertiseAreas:    []string{"Go", " go ", "", "Kubernetes"},
		IsMentorAvailable: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StringSlice{"Go", "Kubernetes"}, p.ExpertiseAreas)
	assert.True(t, p.IsPublicProfile)
	firstID := p.ID

	p, err = svc.SaveAlumni(ctx, alum.ID, AlumniProfileInput{CurrentCompany: "Globex", IsMentorAvailable: false})
	require.NoError(t, err)
	assert.Equal(t, firstID, p.ID, "upsert keeps the row")
	assert.Equal(t, "Globex", p.CurrentCompany)

	all, total, err := svc.Directory(ctx, repository.DirectoryFilter{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, all, 1)

	_, total, err = svc.Directory(ctx, repository.DirectoryFilter{AvailableOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	_, total, err = svc.Directory(ctx, repository.DirectoryFilter{Search: "glob", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	pub, err := svc.PublicAlumni(ctx, alum.ID)
	require.NoError(t, err)
	assert.Equal(t, alum.ID, pub.UserID)

	hidden := false
	_, err = svc.SaveAlumni(ctx, alum.ID, AlumniProfileInput{IsPublicProfile: &hidden})
	require.NoError(t, err)
	_, err = svc.PublicAlumni(ctx, alum.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestProfileService_Student(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewProfileService(f.users, repository.NewProfileRepository(f.db))

	student := f.user(t, "s@uni.edu", models.RoleStudent)

	_, err := svc.Student(ctx, student.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	_, err = svc.SaveStudent(ctx, student.ID, StudentProfileInput{CurrentYear: 9})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	p, err := svc.SaveStudent(ctx, student.ID, StudentProfileInput{RollNumber: "CS-42", CurrentYear: 3, Interests: []string{"ML"}})
	require.NoError(t, err)
	assert.Equal(t, "Computer Science", p.Department)
	assert.Equal(t, models.StringSlice{"ML"}, p.Interests)
}
