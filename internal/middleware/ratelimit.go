package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"mentorlink/internal/models"
	"mentorlink/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// Limit is a fixed-window request budget shared by every route that names it.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
	Policy FailPolicy
}

// Budgets for the write-heavy endpoints.
var (
	RegisterLimit          = Limit{Name: "register", Max: 10, Window: 15 * time.Minute}
	LoginLimit             = Limit{Name: "login", Max: 10, Window: 15 * time.Minute}
	MentorshipRequestLimit = Limit{Name: "mentorship_request", Max: 20, Window: time.Hour}
	ChatMessageLimit       = Limit{Name: "send_chat", Max: 30, Window: time.Minute}
)

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

var errNoRedis = errors.New("rate limit store unavailable")

// incrWindow counts a hit and starts the window on the first one.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then redis.call('PEXPIRE', KEYS[1], ARGV[1]) end
return {n, redis.call('PTTL', KEYS[1])}
`)

// Limiter enforces Limits against Redis counters keyed by caller.
type Limiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewLimiter returns a Limiter for the given APP_ENV. Limits are not enforced
// in test and development.
func NewLimiter(rdb *redis.Client, env string) *Limiter {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "test", "development":
		return &Limiter{rdb: rdb}
	}
	return &Limiter{rdb: rdb, enabled: true}
}

func limitKey(lim Limit, caller string) string {
	return fmt.Sprintf("rl:%s:%s", lim.Name, caller)
}

// Allow counts one request by caller against lim.
func (l *Limiter) Allow(ctx context.Context, lim Limit, caller string) (Decision, error) {
	if !l.enabled {
		return Decision{Allowed: true, Remaining: lim.Max}, nil
	}
	if l.rdb == nil {
		return Decision{}, errNoRedis
	}

	res, err := incrWindow.Run(ctx, l.rdb, []string{limitKey(lim, caller)}, lim.Window.Milliseconds()).Int64Slice()
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("rate_limit").Inc()
		return Decision{}, err
	}
	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = lim.Window
	}

	d := Decision{Allowed: count <= int64(lim.Max), Remaining: lim.Max - int(count)}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}

// callerID keys authenticated requests by user and anonymous ones by IP.
func callerID(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(uuid.UUID); ok {
		return "user:" + uid.String()
	}
	return "ip:" + c.IP()
}

// Middleware enforces lim on every request passing through the handler.
func (l *Limiter) Middleware(lim Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := l.Allow(c.UserContext(), lim, callerID(c))
		if err != nil {
			if lim.Policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "Rate limit store unavailable, rejecting request",
					slog.String("limit", lim.Name),
					slog.String("path", c.Path()),
					slog.String("error", err.Error()),
				)
				return models.RespondWithAppError(c, &models.AppError{
					Code: models.CodeUnavailable, Message: "Service temporarily unavailable",
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(lim.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int((d.RetryAfter + time.Second - 1) / time.Second)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return models.RespondWithAppError(c, &models.AppError{
				Code: models.CodeRateLimited, Message: "Too many requests, try again later",
			})
		}
		return c.Next()
	}
}
