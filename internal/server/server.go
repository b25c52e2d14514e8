// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "mentorlink/docs" // swagger docs
	"mentorlink/internal/cache"
	"mentorlink/internal/config"
	"mentorlink/internal/database"
	"mentorlink/internal/featureflags"
	"mentorlink/internal/middleware"
	"mentorlink/internal/models"
	"mentorlink/internal/notifications"
	"mentorlink/internal/repository"
	"mentorlink/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	tokenIssuer   = "mentorlink-api"
	tokenAudience = "mentorlink-client"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	limiter        *middleware.Limiter
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo         repository.UserRepository
	mentorshipRepo   repository.MentorshipRepository
	messageRepo      repository.MessageRepository
	reviewRepo       repository.ReviewRepository
	profileRepo      repository.ProfileRepository
	verificationRepo repository.VerificationRepository

	notifier     *notifications.Notifier
	featureFlags *featureflags.Manager

	mentorshipService   *service.MentorshipService
	chatService         *service.ChatService
	reviewService       *service.ReviewService
	cleanupService      *service.CleanupService
	profileService      *service.ProfileService
	verificationService *service.VerificationService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, notifications and Redis rate limits are
// then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	s := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		limiter:          middleware.NewLimiter(redisClient, cfg.Env),
		promMiddleware:   middleware.InitMetrics("mentorlink-api"),
		userRepo:         repository.NewUserRepository(db),
		mentorshipRepo:   repository.NewMentorshipRepository(db),
		messageRepo:      repository.NewMessageRepository(db),
		reviewRepo:       repository.NewReviewRepository(db),
		profileRepo:      repository.NewProfileRepository(db),
		verificationRepo: repository.NewVerificationRepository(db),
		featureFlags:     featureflags.NewManager(cfg.FeatureFlags),
	}

	ttl := time.Duration(cfg.CapacityCacheTTLSecond) * time.Second
	capacity := cache.NewCapacityCache(redisClient, ttl)
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}

	s.mentorshipService = service.NewMentorshipService(
		s.mentorshipRepo, s.userRepo, capacity, s.notifier, s.featureFlags, cfg.MentorCapacity)
	s.chatService = service.NewChatService(s.mentorshipRepo, s.messageRepo, db, s.notifier)
	s.reviewService = service.NewReviewService(s.mentorshipRepo, s.reviewRepo)
	s.cleanupService = service.NewCleanupService(s.mentorshipRepo, capacity)
	s.profileService = service.NewProfileService(s.userRepo, s.profileRepo)
	s.verificationService = service.NewVerificationService(db, s.userRepo, s.verificationRepo, s.notifier)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagates request and user IDs into the request context for logging.
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so short-circuited responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "MentorLink Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/register", s.limiter.Middleware(middleware.RegisterLimit), s.Register)
	auth.Post("/login", s.limiter.Middleware(middleware.LoginLimit), s.Login)
	auth.Get("/me", s.AuthRequired(), s.Me)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Public alumni browsing.
	alumni := api.Group("/alumni")
	alumni.Get("/directory", s.GetAlumniDirectory)
	alumni.Get("/profile/:userId", s.GetPublicAlumniProfile)

	protected := api.Group("", s.AuthRequired())

	protected.Get("/alumni/profile", s.GetMyAlumniProfile)
	protected.Put("/alumni/profile", s.UpdateMyAlumniProfile)
	protected.Get("/student/profile", s.GetMyStudentProfile)
	protected.Put("/student/profile", s.UpdateMyStudentProfile)

	mentorship := protected.Group("/mentorship")
	mentorship.Post("/requests",
		s.limiter.Middleware(middleware.MentorshipRequestLimit),
		s.CreateMentorshipRequest)
	mentorship.Get("/my-requests", s.GetMentorInbox)
	mentorship.Get("/sent", s.GetSentRequests)
	mentorship.Get("/mentor/:id/capacity", s.GetMentorCapacity)
	mentorship.Get("/mentor/:id/reviews", s.GetMentorReviews)
	mentorship.Get("/:id", s.GetMentorshipRequest)
	mentorship.Put("/:id/status", s.UpdateMentorshipStatus)
	mentorship.Post("/:id/accept", s.AcceptMentorshipRequest)
	mentorship.Post("/:id/decline", s.DeclineMentorshipRequest)
	mentorship.Post("/:id/complete", s.CompleteMentorshipRequest)
	mentorship.Post("/:id/close-chat", s.CloseMentorshipChat)
	mentorship.Post("/:id/review", s.CreateMentorshipReview)

	chat := protected.Group("/chat")
	chat.Get("/:requestId/messages", s.GetChatMessages)
	chat.Post("/send",
		s.limiter.Middleware(middleware.ChatMessageLimit),
		s.SendChatMessage)

	protected.Get("/ws/chat/:requestId", s.ChatStreamUpgrade(), s.WebSocketChatHandler())

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/verification-requests", s.GetVerificationRequests)
	admin.Post("/verification-requests/:id/approve", s.ApproveVerificationRequest)
	admin.Post("/verification-requests/:id/reject", s.RejectVerificationRequest)
	admin.Get("/users", s.GetAdminUsers)
	admin.Post("/users/:userId/unverify", s.UnverifyUser)
	admin.Get("/mentorship-requests", s.GetAdminMentorshipRequests)
	admin.Post("/mentorship/cleanup", s.RunDuplicateCleanup)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": "mentorlink",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.currentUser(c)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if !user.IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		// Browsers cannot set headers on WebSocket upgrades.
		if tokenString == "" && strings.HasPrefix(c.Path(), "/api/ws") {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.parseToken(tokenString)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}

		sub, ok := claims["sub"].(string)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid subject claim"))
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		if jti, exists := claims["jti"].(string); exists && jti != "" && s.redis != nil {
			isBlacklisted, err := s.redis.Exists(c.Context(), "blacklist:"+jti).Result()
			if err == nil && isBlacklisted > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("userID", userID)
		c.Locals("claims", claims)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// parseToken validates signature, issuer and audience and returns the claims.
func (s *Server) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	if issuer, ok := claims["iss"].(string); !ok || issuer != tokenIssuer {
		return nil, models.NewUnauthorizedError("Invalid token issuer")
	}
	if audience, ok := claims["aud"].(string); !ok || audience != tokenAudience {
		return nil, models.NewUnauthorizedError("Invalid token audience")
	}
	return claims, nil
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.newApp()

	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "MentorLink API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing sql DB", "error", err)
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", "error", err)
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
