package admin

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tightlines/models"
	"tightlines/utils"
)

func (h *Handler) loadUser(c *fiber.Ctx) (models.User, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return models.User{}, fiber.NewError(fiber.StatusBadRequest, "Invalid user id")
	}
	var user models.User
	err = h.db.WithContext(c.UserContext()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, fiber.NewError(fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// GetUserAchievements returns the raw state rows for one user.
func (h *Handler) GetUserAchievements(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	var rows []models.UserAchievement
	if err := h.db.WithContext(c.UserContext()).
		Preload("Achievement").
		Where("user_id = ?", user.ID).
		Order("achievement_id ASC").
		Find(&rows).Error; err != nil {
		return fmt.Errorf("list user achievements: %w", err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"user": user, "achievements": rows})
}

// Recheck runs the engine for one user and waits for the result.
func (h *Handler) Recheck(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	res := h.engine.Check(c.UserContext(), user.ID)
	h.logger.Info("manual recheck",
		zap.Uint("user_id", user.ID),
		zap.Strings("unlocked", res.Unlocked),
		zap.Strings("degraded", res.Degraded))
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"result": res})
}
