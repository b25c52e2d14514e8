// Package bootstrap wires the runtime dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"mentorlink/internal/cache"
	"mentorlink/internal/config"
	"mentorlink/internal/database"
	"mentorlink/internal/middleware"
	"mentorlink/internal/models"
	"mentorlink/internal/repository"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitRuntime connects to DB and Redis and bootstraps the development root admin.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	r := cache.ConnectOptional(ctx, cfg.RedisURL)

	if err := EnsureDevRootAdmin(ctx, cfg, repository.NewUserRepository(db)); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	return db, r, nil
}

// EnsureDevRootAdmin creates or promotes the configured root admin. It only acts
// in development with DEV_BOOTSTRAP_ROOT enabled.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	if cfg == nil || users == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "admin@mentorlink.local"
	}
	name := strings.TrimSpace(cfg.DevRootName)
	if name == "" {
		name = "Root Admin"
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.IsAdmin() && existing.IsVerified {
			return nil
		}
		existing.Role = models.RoleAdmin
		existing.IsVerified = true
		if err := users.Update(ctx, existing); err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "promoted development root admin", "email", email)
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}
	root := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsVerified:   true,
	}
	if err := users.Create(ctx, root); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "created development root admin", "email", email)
	return nil
}
