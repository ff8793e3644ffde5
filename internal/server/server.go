// Package server exposes the dashboard-facing admin API over fiber.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden/internal/config"
	"warden/internal/featureflags"
	"warden/internal/middleware"
	"warden/internal/models"
	"warden/internal/notifications"
	"warden/internal/observability"
	"warden/internal/repository"
	"warden/internal/supervisor"
	"warden/internal/vault"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// LinkIssuer generates tenant link secrets for the onboarding flow.
type LinkIssuer interface {
	IssueLinkSecret(ctx context.Context, tenantID string) (string, time.Time, error)
}

// Deps are the collaborators of the admin API.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Store      repository.Store
	Vault      *vault.Vault
	Supervisor *supervisor.Supervisor
	Links      LinkIssuer
	Mirror     *notifications.SessionMirror
	Hub        *notifications.StatusHub
	Flags      *featureflags.Manager
}

// Server holds the admin API dependencies and handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	store          repository.Store
	vault          *vault.Vault
	supervisor     *supervisor.Supervisor
	links          LinkIssuer
	mirror         *notifications.SessionMirror
	hub            *notifications.StatusHub
	flags          *featureflags.Manager
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownFn     context.CancelFunc
}

// New creates a Server. The fiber app is built immediately so tests can drive
// it with app.Test.
func New(deps Deps) *Server {
	s := &Server{
		config:         deps.Config,
		db:             deps.DB,
		redis:          deps.Redis,
		store:          deps.Store,
		vault:          deps.Vault,
		supervisor:     deps.Supervisor,
		links:          deps.Links,
		mirror:         deps.Mirror,
		hub:            deps.Hub,
		flags:          deps.Flags,
		promMiddleware: middleware.InitMetrics("warden-api"),
	}

	s.app = fiber.New(fiber.Config{
		AppName: "Warden Admin API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.Logger.ErrorContext(c.UserContext(), "unhandled request error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)
	return s
}

// App returns the fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware configures the middleware chain.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := "http://localhost:3000"
	if s.config != nil && s.config.AllowedOrigins != "" {
		origins = s.config.AllowedOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes registers every admin API route.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	auth := middleware.AuthRequired(s.jwtSecret())
	control := middleware.RateLimit(s.redis, 20, time.Minute, middleware.FailOpen, "session_control")

	api := app.Group("/api", auth)
	api.Get("/sessions", s.ListSessions)

	tenants := api.Group("/tenants/:id")
	tenants.Get("/session", s.GetTenantSession)
	tenants.Post("/session/start", control, s.StartTenantSession)
	tenants.Post("/session/stop", control, s.StopTenantSession)
	tenants.Put("/bot-token", control, s.SetTenantBotToken)
	tenants.Get("/channels", s.GetTenantChannels)
	tenants.Post("/link-secret", s.IssueLinkSecret)
	tenants.Get("/features", s.GetTenantFeatures)

	central := api.Group("/central")
	central.Get("/", s.GetCentralSession)
	central.Post("/start", control, s.StartCentralSession)
	central.Post("/restart", control, s.RestartCentralSession)
	central.Get("/channels/:guildId", s.GetCentralChannels)
	central.Post("/panels", s.DeployPanel)

	app.Get("/ws/sessions", requireUpgrade, auth, s.StatusFeedHandler())
}

func (s *Server) jwtSecret() string {
	if s.config == nil {
		return ""
	}
	return s.config.JWTSecret
}

// LivenessCheck handles liveness probes.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional: the
// service runs without the session mirror when it is unavailable.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unhealthy"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"sessions": len(s.supervisor.Snapshot()),
		"time":     time.Now().UTC(),
	})
}

// Start wires the status feed to Redis and serves HTTP until the app is shut
// down.
func (s *Server) Start(addr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownFn = cancel

	if s.hub != nil && s.mirror != nil {
		if err := s.hub.StartWiring(ctx, s.mirror); err != nil {
			observability.Logger.Warn("status feed wiring failed", slog.String("error", err.Error()))
		}
	}

	observability.Logger.Info("admin API listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops the HTTP server and closes status feed clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		observability.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			observability.Logger.Error("error shutting down status feed", slog.String("error", err.Error()))
		}
	}
	return nil
}
