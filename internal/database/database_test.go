package database

import (
	"context"
	"strings"
	"testing"

	"mentorlink/internal/config"
	"mentorlink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestConfigurePool(t *testing.T) {
	db := openSQLite(t)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.GreaterOrEqual(t, len(all), 2)

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
	}
	for _, m := range all {
		assert.NotEmpty(t, strings.TrimSpace(m.UpScript), m.String())
		assert.NotEmpty(t, strings.TrimSpace(m.DownScript), m.String())
	}

	m := GetMigrationByVersion(2)
	require.NotNil(t, m)
	assert.Equal(t, "000002_mentorship", m.String())
	assert.Contains(t, m.UpScript, "mentorship_requests")
	assert.Contains(t, m.UpScript, "review_unique_per_request")
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	pending, err := pendingMigrations([]int{1}, registered)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 2, pending[0].Version)

	_, err = pendingMigrations([]int{1, 7}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")
}

func TestParseSchemaMode(t *testing.T) {
	for raw, want := range map[string]SchemaMode{
		"":       SchemaModeHybrid,
		" SQL ":  SchemaModeSQL,
		"auto":   SchemaModeAuto,
		"Off":    SchemaModeOff,
		"hybrid": SchemaModeHybrid,
	} {
		got, err := ParseSchemaMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseSchemaMode("magic")
	assert.ErrorContains(t, err, "magic")
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.Config
		want        SchemaPlan
		expectError bool
	}{
		{"hybrid dev", config.Config{Env: "development"},
			SchemaPlan{Mode: SchemaModeHybrid, Env: "development", SQL: true, AutoMigrate: true}, false},
		{"hybrid prod", config.Config{Env: "production"},
			SchemaPlan{Mode: SchemaModeHybrid, Env: "production", SQL: true}, false},
		{"hybrid staging", config.Config{Env: "staging"},
			SchemaPlan{Mode: SchemaModeHybrid, Env: "staging", SQL: true}, false},
		{"sql", config.Config{DBSchemaMode: "sql", Env: "development"},
			SchemaPlan{Mode: SchemaModeSQL, Env: "development", SQL: true}, false},
		{"auto dev", config.Config{DBSchemaMode: "auto", Env: "development"},
			SchemaPlan{Mode: SchemaModeAuto, Env: "development", AutoMigrate: true}, false},
		{"auto prod refused", config.Config{DBSchemaMode: "auto", Env: "prod"}, SchemaPlan{}, true},
		{"auto prod allowed", config.Config{DBSchemaMode: "auto", Env: "prod", DBAutoMigrateAllowDestructive: true},
			SchemaPlan{Mode: SchemaModeAuto, Env: "prod", AutoMigrate: true, Destructive: true}, false},
		{"off", config.Config{DBSchemaMode: "off", Env: "production"},
			SchemaPlan{Mode: SchemaModeOff, Env: "production"}, false},
		{"unknown", config.Config{DBSchemaMode: "magic"}, SchemaPlan{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanSchema(&tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan)
		})
	}
}

func TestSchemaPlan_OffLeavesDatabaseUntouched(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, ApplySchema(context.Background(), db, &config.Config{DBSchemaMode: "off"}))
	assert.False(t, db.Migrator().HasTable("users"))
}

func TestSchemaPlan_Inspect(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	plan, err := PlanSchema(&config.Config{DBSchemaMode: "auto", Env: "test"})
	require.NoError(t, err)

	report, err := plan.Inspect(ctx, db)
	require.NoError(t, err)
	assert.False(t, report.Ready())
	assert.Empty(t, report.AppliedVersions)
	assert.Len(t, report.Pending, len(GetMigrations()))
	assert.Equal(t, PersistentTables(), report.MissingTables)

	require.NoError(t, plan.Apply(ctx, db))
	report, err = plan.Inspect(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, report.MissingTables)
	assert.Len(t, report.Pending, len(GetMigrations()), "auto mode does not record SQL migrations")
}

func TestAutoMigrate_CreatesAllTables(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, AutoMigrate(db))

	for _, table := range []string{
		"users", "alumni_profiles", "student_profiles", "verification_requests",
		"mentorship_requests", "messages", "mentorship_reviews",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestAutoMigrate_RatingCheckEnforced(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, AutoMigrate(db))

	student := models.User{Email: "s@uni.edu", PasswordHash: "x", Role: models.RoleStudent}
	mentor := models.User{Email: "m@uni.edu", PasswordHash: "x", Role: models.RoleAlumni}
	require.NoError(t, db.Create(&student).Error)
	require.NoError(t, db.Create(&mentor).Error)
	req := models.MentorshipRequest{StudentID: student.ID, MentorID: mentor.ID, FieldOfInterest: "Go", Status: models.RequestStatusCompleted}
	require.NoError(t, db.Create(&req).Error)

	bad := models.MentorshipReview{MentorshipRequestID: req.ID, ReviewerID: student.ID, Rating: 6}
	assert.Error(t, db.Create(&bad).Error)
}

func TestMigrationStore_SQLite(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	store := NewMigrationStore(db)

	applied, err := store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	require.NoError(t, store.ApplyMigration(ctx, 1, "probe", "CREATE TABLE probe (id INTEGER PRIMARY KEY)"))
	assert.True(t, db.Migrator().HasTable("probe"))

	applied, err = store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)

	err = store.ApplyMigration(ctx, 2, "broken", "CREATE TABLE")
	require.Error(t, err)
	applied, err = store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied, "failed migration is not recorded")

	require.NoError(t, store.RemoveMigration(ctx, 1))
	applied, err = store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
