package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	env := setupTestServer(t)

	status, body := env.get(t, "/health/live", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", body["status"])

	status, body = env.get(t, "/health/ready", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	env.redis.Close()
	status, body = env.get(t, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	checks, _ := body["checks"].(map[string]any)
	assert.Equal(t, "unhealthy", checks["redis"])
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	env := setupTestServer(t)
	status, body := env.get(t, "/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, body["error"])
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 20, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=0", 20, 0},
		{"?limit=500", maxPaginationLimit, 0},
		{"?offset=-3", 20, 0},
		{"?limit=abc", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			app := fiber.New()
			var got Pagination
			app.Get("/", func(c *fiber.Ctx) error {
				got = parsePagination(c, 20)
				return c.SendStatus(fiber.StatusOK)
			})
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
		})
	}
}

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "user ID", humanizeParam("userId"))
	assert.Equal(t, "request ID", humanizeParam("requestId"))
	assert.Equal(t, "slug", humanizeParam("slug"))
}
