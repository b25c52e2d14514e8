package main

import (
	"bytes"
	"context"
	"testing"

	"mentorlink/internal/config"

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
	return db
}

func TestStatusThenAuto(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cfg := &config.Config{DBSchemaMode: "hybrid", Env: "test"}

	var out bytes.Buffer
	require.NoError(t, execute(ctx, db, cfg, []string{"status"}, &out))
	assert.Contains(t, out.String(), "Schema mode hybrid (APP_ENV=test): sql=yes automigrate=yes")
	assert.Contains(t, out.String(), "Migrations: 0 applied, 2 pending")
	assert.Contains(t, out.String(), "pending 000002_mentorship")
	assert.Contains(t, out.String(), "Tables missing: users, alumni_profiles")
	assert.NotContains(t, out.String(), "Schema is ready")

	out.Reset()
	require.NoError(t, execute(ctx, db, cfg, []string{"auto"}, &out))
	assert.Equal(t, "AutoMigrate finished for 7 tables\n", out.String())
	assert.Equal(t, "hybrid", cfg.DBSchemaMode, "auto does not mutate the loaded config")

	out.Reset()
	require.NoError(t, execute(ctx, db, cfg, []string{"STATUS"}, &out))
	assert.Contains(t, out.String(), "Tables: all present")
}

func TestStatus_ProductionPlan(t *testing.T) {
	db := setupTestDB(t)
	var out bytes.Buffer

	require.NoError(t, execute(context.Background(), db, &config.Config{Env: "production"}, []string{"status"}, &out))
	assert.Contains(t, out.String(), "Schema mode hybrid (APP_ENV=production): sql=yes automigrate=no")

	err := execute(context.Background(), db, &config.Config{DBSchemaMode: "auto", Env: "production"}, []string{"status"}, &out)
	assert.ErrorContains(t, err, "DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE")
}

func TestDown_RejectsBadInput(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cfg := &config.Config{Env: "test"}
	var out bytes.Buffer

	assert.ErrorIs(t, execute(ctx, db, cfg, []string{"down"}, &out), errUsage)
	assert.ErrorContains(t, execute(ctx, db, cfg, []string{"down", "latest"}, &out), `invalid version "latest"`)
	assert.ErrorContains(t, execute(ctx, db, cfg, []string{"down", "999"}, &out), "not found")
	assert.ErrorContains(t, execute(ctx, db, cfg, []string{"down", "2"}, &out), "has not been applied")
	assert.Empty(t, out.String())
}

func TestRun_PrintsUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"sideways"}} {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), args, &stdout, &stderr)
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr.String(), "migrate down <version>")
		assert.Empty(t, stdout.String())
	}
}
