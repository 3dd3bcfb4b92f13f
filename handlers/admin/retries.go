package admin

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"tightlines/models"
	"tightlines/utils"
)

// GetRetries returns the queue summary plus recent rows, filtered by the
// optional status query parameter.
func (h *Handler) GetRetries(c *fiber.Ctx) error {
	if h.retries == nil {
		return utils.JSONError(c, fiber.StatusServiceUnavailable, "Reward retries are disabled")
	}

	status := c.Query("status")
	switch status {
	case "", models.RetryStatusPending, models.RetryStatusDone, models.RetryStatusDead:
	default:
		return utils.JSONError(c, fiber.StatusBadRequest, "Unknown status")
	}

	ctx := c.UserContext()
	summary, err := h.retries.Summary(ctx)
	if err != nil {
		return fmt.Errorf("retry summary: %w", err)
	}
	rows, err := h.retries.List(ctx, status, utils.QueryInt(c, "limit", 100, 1, 500))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"summary": summary, "retries": rows})
}

// RunRetries drains one batch immediately instead of waiting for the worker.
func (h *Handler) RunRetries(c *fiber.Ctx) error {
	if h.runner == nil {
		return utils.JSONError(c, fiber.StatusServiceUnavailable, "Reward retries are disabled")
	}
	stats, err := h.runner.RunOnce(c.UserContext())
	if err != nil {
		return fmt.Errorf("run reward retries: %w", err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"stats": stats})
}
