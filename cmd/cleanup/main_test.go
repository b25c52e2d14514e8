package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"mentorlink/internal/cache"
	"mentorlink/internal/database"
	"mentorlink/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func seedPair(t *testing.T, db *gorm.DB) (student, mentor uuid.UUID) {
	t.Helper()
	s := &models.User{Email: "s@uni.edu", PasswordHash: "x", Role: models.RoleStudent}
	m := &models.User{Email: "m@uni.edu", PasswordHash: "x", Role: models.RoleAlumni}
	require.NoError(t, db.Create(s).Error)
	require.NoError(t, db.Create(m).Error)

	base := time.Now().UTC().Add(-time.Hour)
	for i, status := range []models.RequestStatus{models.RequestStatusPending, models.RequestStatusPending, models.RequestStatusAccepted} {
		req := &models.MentorshipRequest{
			StudentID: s.ID, MentorID: m.ID, FieldOfInterest: "Go",
			Status: status, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Omit("Student", "Mentor").Create(req).Error)
	}
	return s.ID, m.ID
}

func TestExecute_DryRunWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	seedPair(t, db)

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), db, nil, true, &out))
	assert.Contains(t, out.String(), "Dry run: 2 duplicate")

	var pending int64
	require.NoError(t, db.Model(&models.MentorshipRequest{}).Where("status = ?", models.RequestStatusPending).Count(&pending).Error)
	assert.EqualValues(t, 2, pending)
}

func TestExecute_DeclinesAndInvalidatesCapacity(t *testing.T) {
	db := setupTestDB(t)
	_, mentor := seedPair(t, db)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	capacity := cache.NewCapacityCache(rdb, time.Minute)
	ctx := context.Background()
	_, err := capacity.Set(ctx, mentor, 0, cache.CapacitySnapshot{Accepted: 1, Limit: 5})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, execute(ctx, db, capacity, false, &out))
	assert.Contains(t, out.String(), "Declined 2 duplicate")
	assert.False(t, mr.Exists(cache.MentorCapacityKey(mentor)))

	out.Reset()
	require.NoError(t, execute(ctx, db, capacity, false, &out))
	assert.Contains(t, out.String(), "Declined 0 duplicate")
}

func TestRun_FailsWithoutDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--dry"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "DATABASE_URL")
	assert.Empty(t, stdout.String())
}

func TestRun_RejectsUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), []string{"--nope"}, &stdout, &stderr))
}
