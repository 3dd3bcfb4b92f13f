package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tightlines/middleware"
	"tightlines/models"
	"tightlines/utils"
)

// AchievementView is a catalog entry merged with the caller's state.
type AchievementView struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Description  string                  `json:"description"`
	Icon         string                  `json:"icon"`
	Category     string                  `json:"category"`
	Rarity       string                  `json:"rarity"`
	RewardPoints int                     `json:"reward_points"`
	IsSecret     bool                    `json:"is_secret"`
	State        models.AchievementState `json:"state"`
	Progress     int                     `json:"progress"`
	UnlockedAt   *time.Time              `json:"unlocked_at,omitempty"`
}

const (
	hiddenName        = "???"
	hiddenDescription = "Keep fishing to reveal this achievement."
	hiddenIcon        = "lock"
)

func buildView(def models.Achievement, row *models.UserAchievement) AchievementView {
	v := AchievementView{
		ID:           def.ID,
		Name:         def.Name,
		Description:  def.Description,
		Icon:         def.Icon,
		Category:     def.Category,
		Rarity:       def.Rarity,
		RewardPoints: def.RewardPoints,
		IsSecret:     def.IsSecret,
		State:        row.State(),
	}
	if row != nil {
		v.Progress = row.Progress
		v.UnlockedAt = row.UnlockedAt
	}
	if def.IsSecret && v.State != models.StateUnlocked {
		v.Name = hiddenName
		v.Description = hiddenDescription
		v.Icon = hiddenIcon
	}
	return v
}

func (a *API) ListAchievements(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	var defs []models.Achievement
	if err := a.db.WithContext(ctx).Order("category ASC, id ASC").Find(&defs).Error; err != nil {
		return fmt.Errorf("list achievements: %w", err)
	}
	var rows []models.UserAchievement
	if err := a.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return fmt.Errorf("list achievement states: %w", err)
	}
	byID := make(map[string]*models.UserAchievement, len(rows))
	for i := range rows {
		byID[rows[i].AchievementID] = &rows[i]
	}

	views := make([]AchievementView, 0, len(defs))
	unlocked := 0
	for _, def := range defs {
		v := buildView(def, byID[def.ID])
		if v.State == models.StateUnlocked {
			unlocked++
		}
		views = append(views, v)
	}

	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"achievements": views,
		"unlocked":     unlocked,
		"total":        len(views),
	})
}

func (a *API) Feed(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	limit := utils.QueryInt(c, "limit", 50, 1, 200)

	var entries []models.ActivityFeedEntry
	if err := a.db.WithContext(c.UserContext()).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return fmt.Errorf("list feed: %w", err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"entries": entries})
}

func (a *API) Me(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	var user models.User
	err = a.db.WithContext(c.UserContext()).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.JSONError(c, fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"user": user})
}
