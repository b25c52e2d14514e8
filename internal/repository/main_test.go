package repository

import (
	"context"
	"testing"
	"time"

	"mentorlink/internal/database"
	"mentorlink/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection would otherwise get its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email, PasswordHash: "hash", Role: role, IsVerified: true}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), u))
	return u
}

func createRequest(
	t *testing.T, db *gorm.DB, student, mentor *models.User, status models.RequestStatus, created time.Time,
) *models.MentorshipRequest {
	t.Helper()
	req := &models.MentorshipRequest{
		StudentID:       student.ID,
		MentorID:        mentor.ID,
		FieldOfInterest: "Distributed systems",
		Status:          status,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	require.NoError(t, NewMentorshipRepository(db).Create(context.Background(), req))
	return req
}
