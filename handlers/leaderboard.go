package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tightlines/models"
	"tightlines/utils"
)

// LeaderboardEntry is one ranked registered user.
type LeaderboardEntry struct {
	UserID       uint   `json:"user_id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	Avatar       string `json:"avatar"`
	Points       int    `json:"points"`
	Achievements int64  `json:"achievements"`
	Catches      int64  `json:"catches"`
}

var leaderboardOrder = map[string]string{
	"points":       "points DESC, achievements DESC, user_id ASC",
	"achievements": "achievements DESC, points DESC, user_id ASC",
	"catches":      "catches DESC, points DESC, user_id ASC",
}

// GetLeaderboard ranks registered users.
// GET /api/leaderboard?category=points&limit=50&offset=0
func (a *API) GetLeaderboard(c *fiber.Ctx) error {
	category := c.Query("category", "points")
	orderBy, ok := leaderboardOrder[category]
	if !ok {
		return utils.JSONError(c, fiber.StatusBadRequest, "Unknown leaderboard category")
	}
	limit := utils.QueryInt(c, "limit", 50, 1, 100)
	offset := utils.QueryInt(c, "offset", 0, 0, 1<<20)

	entries := []LeaderboardEntry{}
	err := a.db.WithContext(c.UserContext()).Raw(`
		SELECT
			u.id AS user_id,
			u.username,
			u.display_name,
			u.avatar,
			u.total_points_earned AS points,
			(SELECT COUNT(*) FROM user_achievements ua
				WHERE ua.user_id = u.id AND ua.unlocked_at IS NOT NULL) AS achievements,
			(SELECT COUNT(*) FROM catches ca WHERE ca.user_id = u.id) AS catches
		FROM users u
		WHERE u.is_guest = ?
		ORDER BY `+orderBy+`
		LIMIT ? OFFSET ?
	`, false, limit, offset).Scan(&entries).Error
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	var total int64
	if err := a.db.WithContext(c.UserContext()).
		Model(&models.User{}).
		Where("is_guest = ?", false).
		Count(&total).Error; err != nil {
		return fmt.Errorf("count leaderboard users: %w", err)
	}

	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"entries":  entries,
		"category": category,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetUserRank returns a user's position on the points board.
// GET /api/leaderboard/user/:id
func (a *API) GetUserRank(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid user id")
	}

	ctx := c.UserContext()
	var user models.User
	err = a.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.JSONError(c, fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	var ahead int64
	if err := a.db.WithContext(ctx).
		Model(&models.User{}).
		Where("is_guest = ? AND total_points_earned > ?", false, user.TotalPointsEarned).
		Count(&ahead).Error; err != nil {
		return fmt.Errorf("rank user: %w", err)
	}

	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"user_id":  user.ID,
		"username": user.Username,
		"points":   user.TotalPointsEarned,
		"rank":     ahead + 1,
	})
}
