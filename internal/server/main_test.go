package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"mentorlink/internal/config"
	"mentorlink/internal/database"
	"mentorlink/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testJWTSecret = "test-secret-key-that-is-long-enough-32"

type testEnv struct {
	srv   *Server
	app   *fiber.App
	db    *gorm.DB
	redis *miniredis.Miniredis
}

func newTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:              testJWTSecret,
		JWTTTLHours:            1,
		Port:                   "0",
		Env:                    "test",
		MentorCapacity:         config.DefaultMentorCapacity,
		CapacityCacheTTLSecond: 60,
	}
}

func setupTestServer(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := newTestConfig()
	for _, m := range mutate {
		m(cfg)
	}

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	return &testEnv{srv: srv, app: srv.newApp(), db: db, redis: mr}
}

func (e *testEnv) user(t *testing.T, email string, role models.UserRole) (*models.User, string) {
	t.Helper()
	u := &models.User{Email: email, Name: "Test User", PasswordHash: "x", Role: role, IsVerified: true}
	require.NoError(t, e.db.Create(u).Error)
	token, err := e.srv.generateToken(u)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (e *testEnv) get(t *testing.T, path, token string) (int, map[string]any) {
	return e.do(t, http.MethodGet, path, token, nil)
}

func (e *testEnv) post(t *testing.T, path, token string, body any) (int, map[string]any) {
	return e.do(t, http.MethodPost, path, token, body)
}
