package service

import (
	"context"
	"testing"
	"time"

	"mentorlink/internal/cache"
	"mentorlink/internal/database"
	"mentorlink/internal/models"
	"mentorlink/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type fixture struct {
	db       *gorm.DB
	users    repository.UserRepository
	requests repository.MentorshipRepository
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	return &fixture{
		db:       db,
		users:    repository.NewUserRepository(db),
		requests: repository.NewMentorshipRepository(db),
	}
}

func (f *fixture) user(t *testing.T, email string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email, PasswordHash: "hash", Role: role, IsVerified: true}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) request(
	t *testing.T, student, mentor *models.User, status models.RequestStatus, created time.Time,
) *models.MentorshipRequest {
	t.Helper()
	req := &models.MentorshipRequest{
		StudentID:       student.ID,
		MentorID:        mentor.ID,
		FieldOfInterest: "Backend engineering",
		Status:          status,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	require.NoError(t, f.requests.Create(context.Background(), req))
	return req
}

func (f *fixture) status(t *testing.T, id uuid.UUID) models.RequestStatus {
	t.Helper()
	var req models.MentorshipRequest
	require.NoError(t, f.db.First(&req, "id = ?", id).Error)
	return req.Status
}

func newCapacityCache(rdb *redis.Client) *cache.CapacityCache {
	return cache.NewCapacityCache(rdb, time.Minute)
}
