package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tightlines/middleware"
	"tightlines/models"
	"tightlines/utils"
)

type CreateCatchRequest struct {
	Species  string  `json:"species"`
	WeightKg float64 `json:"weight_kg"`
	LengthCm float64 `json:"length_cm"`
	Location string  `json:"location"`
	PhotoURL string  `json:"photo_url"`
	Notes    string  `json:"notes"`
}

type OpenCaseRequest struct {
	CaseType string `json:"case_type"`
}

const defaultCaseType = "standard"

// trigger schedules an engine pass that outlives the request.
func (a *API) trigger(ctx context.Context, userID uint) {
	if a.engine != nil {
		a.engine.Trigger(ctx, userID)
	}
}

func (a *API) CreateCatch(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	var req CreateCatchRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Species = strings.TrimSpace(req.Species)
	switch {
	case req.Species == "":
		return utils.JSONError(c, fiber.StatusBadRequest, "Species is required")
	case len(req.Species) > 120:
		return utils.JSONError(c, fiber.StatusBadRequest, "Species must be at most 120 characters")
	case req.WeightKg < 0 || req.LengthCm < 0:
		return utils.JSONError(c, fiber.StatusBadRequest, "Weight and length cannot be negative")
	}

	catch := models.Catch{
		UserID:   userID,
		Species:  req.Species,
		WeightKg: req.WeightKg,
		LengthCm: req.LengthCm,
		Location: strings.TrimSpace(req.Location),
		PhotoURL: strings.TrimSpace(req.PhotoURL),
		Notes:    req.Notes,
	}
	ctx := c.UserContext()
	if err := a.db.WithContext(ctx).Create(&catch).Error; err != nil {
		return fmt.Errorf("create catch: %w", err)
	}

	entry := models.ActivityFeedEntry{
		UserID:  userID,
		Content: "Caught a " + catch.Species,
		Type:    models.ActivityCatch,
	}
	if err := a.db.WithContext(ctx).Create(&entry).Error; err != nil {
		a.logger.Warn("append catch activity", zap.Uint("user_id", userID), zap.Error(err))
	}

	a.trigger(ctx, userID)
	return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{"catch": catch})
}

func (a *API) ListCatches(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	limit := utils.QueryInt(c, "limit", 50, 1, 200)

	var catches []models.Catch
	if err := a.db.WithContext(c.UserContext()).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&catches).Error; err != nil {
		return fmt.Errorf("list catches: %w", err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"catches": catches})
}

// LikeCatch is idempotent per (catch, user). Likes count toward the catch
// owner's achievements, so the owner is the one re-evaluated.
func (a *API) LikeCatch(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	catchID, err := c.ParamsInt("id")
	if err != nil || catchID <= 0 {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid catch id")
	}

	ctx := c.UserContext()
	var catch models.Catch
	err = a.db.WithContext(ctx).First(&catch, catchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.JSONError(c, fiber.StatusNotFound, "Catch not found")
	}
	if err != nil {
		return fmt.Errorf("find catch: %w", err)
	}
	if catch.UserID == userID {
		return utils.JSONError(c, fiber.StatusBadRequest, "You cannot like your own catch")
	}

	like := models.CatchLike{CatchID: catch.ID, UserID: userID}
	result := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like)
	if result.Error != nil {
		return fmt.Errorf("like catch: %w", result.Error)
	}
	created := result.RowsAffected > 0

	var likes int64
	if err := a.db.WithContext(ctx).
		Model(&models.CatchLike{}).
		Where("catch_id = ?", catch.ID).
		Count(&likes).Error; err != nil {
		return fmt.Errorf("count likes: %w", err)
	}

	if created {
		a.trigger(ctx, catch.UserID)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"liked": true, "likes": likes})
}

func (a *API) OpenCase(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	var req OpenCaseRequest
	_ = c.BodyParser(&req)
	caseType := strings.TrimSpace(req.CaseType)
	if caseType == "" {
		caseType = defaultCaseType
	}
	if len(caseType) > 50 {
		return utils.JSONError(c, fiber.StatusBadRequest, "Case type must be at most 50 characters")
	}

	opening := models.CaseOpening{UserID: userID, CaseType: caseType}
	ctx := c.UserContext()
	if err := a.db.WithContext(ctx).Create(&opening).Error; err != nil {
		return fmt.Errorf("record case opening: %w", err)
	}

	a.trigger(ctx, userID)
	return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{"opening": opening})
}
