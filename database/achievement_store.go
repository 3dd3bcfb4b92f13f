package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tightlines/achievements"
	"tightlines/models"
)

// ErrUserNotFound is returned when a point increment matches no user.
var ErrUserNotFound = errors.New("user not found")

var stateKey = []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}}

// stillLocked limits conflict updates to rows that are not unlocked yet.
var stillLocked = clause.Where{Exprs: []clause.Expression{
	clause.Expr{SQL: "user_achievements.unlocked_at IS NULL"},
}}

// AchievementStore is the gorm implementation of achievements.Store.
type AchievementStore struct {
	db *gorm.DB
}

var _ achievements.Store = (*AchievementStore)(nil)

func NewAchievementStore(db *gorm.DB) *AchievementStore {
	return &AchievementStore{db: db}
}

func (s *AchievementStore) GetBalances(ctx context.Context, userID uint) (achievements.Balances, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Select("id", "current_points", "total_points_earned").
		First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return achievements.Balances{}, ErrUserNotFound
	}
	if err != nil {
		return achievements.Balances{}, fmt.Errorf("get balances: %w", err)
	}
	return achievements.Balances{
		CurrentPoints:     user.CurrentPoints,
		TotalPointsEarned: user.TotalPointsEarned,
	}, nil
}

func (s *AchievementStore) ListCatches(ctx context.Context, userID uint) ([]models.Catch, error) {
	var catches []models.Catch
	if err := s.db.WithContext(ctx).
		Select("id", "user_id", "species", "created_at").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&catches).Error; err != nil {
		return nil, fmt.Errorf("list catches: %w", err)
	}
	return catches, nil
}

func (s *AchievementStore) CountLikesReceived(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&models.CatchLike{}).
		Joins("JOIN catches ON catches.id = catch_likes.catch_id").
		Where("catches.user_id = ?", userID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count likes received: %w", err)
	}
	return n, nil
}

func (s *AchievementStore) CountCasesOpened(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&models.CaseOpening{}).
		Where("user_id = ?", userID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count cases opened: %w", err)
	}
	return n, nil
}

func (s *AchievementStore) ListDefinitions(ctx context.Context) ([]models.Achievement, error) {
	var defs []models.Achievement
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&defs).Error; err != nil {
		return nil, fmt.Errorf("list achievement definitions: %w", err)
	}
	return defs, nil
}

func (s *AchievementStore) ListStates(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	var states []models.UserAchievement
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("achievement_id ASC").
		Find(&states).Error; err != nil {
		return nil, fmt.Errorf("list achievement states: %w", err)
	}
	return states, nil
}

func (s *AchievementStore) GetState(ctx context.Context, userID uint, achievementID string) (models.UserAchievement, bool, error) {
	var state models.UserAchievement
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserAchievement{}, false, nil
	}
	if err != nil {
		return models.UserAchievement{}, false, fmt.Errorf("get achievement state: %w", err)
	}
	return state, true, nil
}

// UpsertProgress writes progress for a locked row and leaves unlocked rows
// alone.
func (s *AchievementStore) UpsertProgress(ctx context.Context, userID uint, achievementID string, progress int) error {
	row := models.UserAchievement{
		UserID:        userID,
		AchievementID: achievementID,
		Progress:      progress,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   stateKey,
			DoUpdates: clause.AssignmentColumns([]string{"progress", "updated_at"}),
			Where:     stillLocked,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert achievement progress: %w", err)
	}
	return nil
}

// MarkUnlocked inserts or updates the row to unlocked. The update only
// applies while unlocked_at is NULL, so exactly one caller sees true.
func (s *AchievementStore) MarkUnlocked(ctx context.Context, userID uint, achievementID string, at time.Time) (bool, error) {
	unlockedAt := at.UTC()
	row := models.UserAchievement{
		UserID:        userID,
		AchievementID: achievementID,
		Progress:      100,
		UnlockedAt:    &unlockedAt,
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   stateKey,
			DoUpdates: clause.AssignmentColumns([]string{"progress", "unlocked_at", "updated_at"}),
			Where:     stillLocked,
		}).
		Create(&row)
	if result.Error != nil {
		return false, fmt.Errorf("mark achievement unlocked: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// IncrementPoints adds delta to both point counters in one statement.
func (s *AchievementStore) IncrementPoints(ctx context.Context, userID uint, delta int) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"current_points":      gorm.Expr("current_points + ?", delta),
			"total_points_earned": gorm.Expr("total_points_earned + ?", delta),
		})
	if result.Error != nil {
		return fmt.Errorf("increment points: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *AchievementStore) AppendActivity(ctx context.Context, entry models.ActivityFeedEntry) error {
	entry.ID = 0
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}
