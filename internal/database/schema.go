package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mentorlink/internal/config"
	"mentorlink/internal/middleware"

	"gorm.io/gorm"
)

// SchemaMode selects how the service brings the database schema up to date.
type SchemaMode string

const (
	// SchemaModeHybrid applies SQL migrations everywhere and lets AutoMigrate
	// fill gaps outside production-like environments.
	SchemaModeHybrid SchemaMode = "hybrid"
	// SchemaModeSQL applies embedded SQL migrations only.
	SchemaModeSQL SchemaMode = "sql"
	// SchemaModeAuto runs GORM AutoMigrate only.
	SchemaModeAuto SchemaMode = "auto"
	// SchemaModeOff leaves the schema to the migrate command.
	SchemaModeOff SchemaMode = "off"
)

// ParseSchemaMode normalizes a DB_SCHEMA_MODE value. Empty means hybrid.
func ParseSchemaMode(raw string) (SchemaMode, error) {
	switch mode := SchemaMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return SchemaModeHybrid, nil
	case SchemaModeHybrid, SchemaModeSQL, SchemaModeAuto, SchemaModeOff:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported DB_SCHEMA_MODE %q (want hybrid, sql, auto or off)", raw)
	}
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// SchemaPlan is the resolved set of schema steps for one environment.
type SchemaPlan struct {
	Mode        SchemaMode
	Env         string
	SQL         bool
	AutoMigrate bool
	// Destructive is set when AutoMigrate was explicitly allowed in a
	// production-like environment.
	Destructive bool
}

// PlanSchema resolves cfg into the steps Apply will run. AutoMigrate against a
// production-like database is refused unless DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE is set.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	mode, err := ParseSchemaMode(cfg.DBSchemaMode)
	if err != nil {
		return SchemaPlan{}, err
	}
	prodLike := isProdLikeEnv(cfg.Env)
	plan := SchemaPlan{Mode: mode, Env: cfg.Env}

	switch mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return SchemaPlan{}, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.AutoMigrate = true
		plan.Destructive = prodLike
	case SchemaModeHybrid:
		plan.SQL = true
		plan.AutoMigrate = !prodLike
	}
	return plan, nil
}

// AutoMigrate creates or updates every persistent table with GORM.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// Apply runs the planned steps: SQL migrations first, then AutoMigrate.
func (p SchemaPlan) Apply(ctx context.Context, db *gorm.DB) error {
	if p.Mode == SchemaModeOff {
		middleware.Logger.Info("Schema management disabled", slog.String("env", p.Env))
		return nil
	}
	if p.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if p.AutoMigrate {
		if p.Destructive {
			middleware.Logger.Warn("AutoMigrate enabled for a production-like database",
				slog.String("env", p.Env))
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", string(p.Mode)), slog.String("env", p.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// ApplySchema plans and applies the schema for cfg.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}
	return plan.Apply(ctx, db)
}

// SchemaReport is what the database looks like relative to a plan.
type SchemaReport struct {
	Plan            SchemaPlan
	AppliedVersions []int
	Pending         []Migration
	MissingTables   []string
}

// Ready reports whether nothing is pending and every table exists.
func (r *SchemaReport) Ready() bool {
	return len(r.Pending) == 0 && len(r.MissingTables) == 0
}

// Inspect compares the database with the plan without changing it.
func (p SchemaPlan) Inspect(ctx context.Context, db *gorm.DB) (*SchemaReport, error) {
	report := &SchemaReport{Plan: p}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	report.AppliedVersions = applied
	if report.Pending, err = pendingMigrations(applied, GetMigrations()); err != nil {
		return nil, err
	}

	migrator := db.WithContext(ctx).Migrator()
	for _, table := range PersistentTables() {
		if !migrator.HasTable(table) {
			report.MissingTables = append(report.MissingTables, table)
		}
	}
	return report, nil
}
