// Package handlers exposes the HTTP API. Every write that can move an
// achievement triggers an engine pass for the affected user.
package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tightlines/achievements"
	"tightlines/handlers/admin"
	"tightlines/middleware"
	"tightlines/services"
)

// Checker is the part of the achievement engine the handlers use.
type Checker interface {
	Trigger(ctx context.Context, userID uint)
	Check(ctx context.Context, userID uint) achievements.Result
}

// Deps carries everything the API needs. AuthLimit and Limit may be nil.
type Deps struct {
	DB        *gorm.DB
	Engine    Checker
	Hub       *services.Hub
	Retries   admin.RetryLister
	RetryRun  admin.RetryRunner
	Logger    *zap.Logger
	JWTSecret string
	TokenTTL  time.Duration
	Limit     fiber.Handler
	AuthLimit fiber.Handler
}

type API struct {
	db        *gorm.DB
	engine    Checker
	hub       *services.Hub
	logger    *zap.Logger
	jwtSecret string
	tokenTTL  time.Duration
	admin     *admin.Handler
	limit     fiber.Handler
	authLimit fiber.Handler
}

func New(d Deps) *API {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pass := func(c *fiber.Ctx) error { return c.Next() }
	limit, authLimit := d.Limit, d.AuthLimit
	if limit == nil {
		limit = pass
	}
	if authLimit == nil {
		authLimit = pass
	}
	return &API{
		db:        d.DB,
		engine:    d.Engine,
		hub:       d.Hub,
		logger:    logger.Named("http"),
		jwtSecret: d.JWTSecret,
		tokenTTL:  d.TokenTTL,
		admin:     admin.New(d.DB, d.Engine, d.Retries, d.RetryRun, logger),
		limit:     limit,
		authLimit: authLimit,
	}
}

// Register mounts every route on app.
func (a *API) Register(app *fiber.App) {
	app.Get("/health", a.Health)

	api := app.Group("/api", a.limit)

	authGroup := api.Group("/auth", a.authLimit)
	authGroup.Post("/register", a.RegisterUser)
	authGroup.Post("/login", a.Login)
	authGroup.Post("/guest", a.GuestLogin)

	auth := middleware.Auth(a.jwtSecret)

	api.Post("/catches", auth, a.CreateCatch)
	api.Get("/catches", auth, a.ListCatches)
	api.Post("/catches/:id/like", auth, a.LikeCatch)
	api.Post("/cases/open", auth, a.OpenCase)
	api.Get("/achievements", auth, a.ListAchievements)
	api.Get("/feed", auth, a.Feed)
	api.Get("/users/me", auth, a.Me)

	api.Get("/leaderboard", a.GetLeaderboard)
	api.Get("/leaderboard/user/:id", a.GetUserRank)

	adminGroup := api.Group("/admin", auth, middleware.Admin())
	a.admin.Register(adminGroup)

	if a.hub != nil {
		app.Get("/ws", middleware.WebSocketAuth(a.jwtSecret), requireUpgrade, websocket.New(a.serveWS))
	}
}

func (a *API) Health(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().Unix(),
	})
}

// ErrorHandler renders errors as the JSON envelope and hides 500 details in
// production.
func ErrorHandler(production bool, logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		} else {
			message = err.Error()
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
			if production {
				message = "An error occurred. Please try again later."
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}
