package service

import (
	"context"
	"testing"

	"mentorlink/internal/models"
	"mentorlink/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationService_Workflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	verifications := repository.NewVerificationRepository(f.db)
	svc := NewVerificationService(f.db, f.users, verifications, nil)

	admin := f.user(t, "admin@uni.edu", models.RoleAdmin)
	alum := &models.User{Email: "alum@uni.edu", PasswordHash: "x", Role: models.RoleAlumni}
	require.NoError(t, f.users.Create(ctx, alum))

	v, err := svc.Submit(ctx, alum.ID)
	require.NoError(t, err)

	pending, err := svc.List(ctx, models.VerificationStatusPending, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	approved, err := svc.Approve(ctx, v.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, admin.ID, *approved.ReviewedBy)

	u, err := f.users.GetByID(ctx, alum.ID)
	require.NoError(t, err)
	assert.True(t, u.IsVerified)
	require.NotNil(t, u.VerifiedBy)

	_, err = svc.Approve(ctx, v.ID, admin.ID)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	require.NoError(t, svc.Unverify(ctx, alum.ID, admin.ID))
	u, err = f.users.GetByID(ctx, alum.ID)
	require.NoError(t, err)
	assert.False(t, u.IsVerified)
	assert.Nil(t, u.VerifiedAt)

	revoked, err := verifications.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusRejected, revoked.Status)
	assert.Equal(t, revokedNote, revoked.ReviewNotes)
}

func TestVerificationService_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewVerificationService(f.db, f.users, repository.NewVerificationRepository(f.db), nil)

	admin := f.user(t, "admin@uni.edu", models.RoleAdmin)
	student := f.user(t, "s@uni.edu", models.RoleStudent)
	v, err := svc.Submit(ctx, student.ID)
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, v.ID, admin.ID, "Roll number mismatch")
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusRejected, rejected.Status)
	assert.Equal(t, "Roll number mismatch", rejected.ReviewNotes)

	_, err = svc.Reject(ctx, v.ID, admin.ID, "again")
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	_, err = svc.Approve(ctx, v.ID, admin.ID)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
}

func TestVerificationService_ListUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewVerificationService(f.db, f.users, repository.NewVerificationRepository(f.db), nil)

	f.user(t, "alum@uni.edu", models.RoleAlumni)
	f.user(t, "student@uni.edu", models.RoleStudent)

	users, total, err := svc.ListUsers(ctx, repository.UserFilter{Role: models.RoleAlumni, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "alum@uni.edu", users[0].Email)

	_, _, err = svc.ListUsers(ctx, repository.UserFilter{Role: "mentor", Limit: 10})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}
