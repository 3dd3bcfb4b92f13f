// Package admin serves operator endpoints. Routes assume the caller already
// passed the admin middleware.
package admin

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tightlines/achievements"
	"tightlines/database"
	"tightlines/models"
	"tightlines/services"
)

// Rechecker runs a synchronous engine pass.
type Rechecker interface {
	Check(ctx context.Context, userID uint) achievements.Result
}

// RetryLister reads the reward retry queue.
type RetryLister interface {
	Summary(ctx context.Context) (database.RetrySummary, error)
	List(ctx context.Context, status string, limit int) ([]models.RewardRetry, error)
}

// RetryRunner drains the queue on demand.
type RetryRunner interface {
	RunOnce(ctx context.Context) (services.RetryRunStats, error)
}

type Handler struct {
	db      *gorm.DB
	engine  Rechecker
	retries RetryLister
	runner  RetryRunner
	logger  *zap.Logger
}

func New(db *gorm.DB, engine Rechecker, retries RetryLister, runner RetryRunner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, engine: engine, retries: retries, runner: runner, logger: logger.Named("admin")}
}

func (h *Handler) Register(r fiber.Router) {
	r.Get("/achievements", h.GetAchievements)
	r.Get("/users/:id/achievements", h.GetUserAchievements)
	r.Post("/users/:id/recheck", h.Recheck)
	r.Get("/retries", h.GetRetries)
	r.Post("/retries/run", h.RunRetries)
}
