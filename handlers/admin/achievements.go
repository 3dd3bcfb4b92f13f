package admin

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"tightlines/models"
	"tightlines/utils"
)

// AchievementStats is a catalog entry with how many users unlocked it.
type AchievementStats struct {
	models.Achievement
	UnlockCount int64 `json:"unlock_count"`
}

// GetAchievements returns the full catalog, secrets included.
func (h *Handler) GetAchievements(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var defs []models.Achievement
	if err := h.db.WithContext(ctx).Order("category ASC, id ASC").Find(&defs).Error; err != nil {
		return fmt.Errorf("list achievements: %w", err)
	}

	type unlockCount struct {
		AchievementID string
		Count         int64
	}
	var counts []unlockCount
	if err := h.db.WithContext(ctx).
		Model(&models.UserAchievement{}).
		Select("achievement_id, COUNT(*) AS count").
		Where("unlocked_at IS NOT NULL").
		Group("achievement_id").
		Scan(&counts).Error; err != nil {
		return fmt.Errorf("count unlocks: %w", err)
	}
	byID := make(map[string]int64, len(counts))
	for _, uc := range counts {
		byID[uc.AchievementID] = uc.Count
	}

	out := make([]AchievementStats, 0, len(defs))
	for _, def := range defs {
		out = append(out, AchievementStats{Achievement: def, UnlockCount: byID[def.ID]})
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"achievements": out})
}
