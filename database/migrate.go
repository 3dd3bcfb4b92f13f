// database/migrate.go - Database Migration Runner
package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tightlines/models"
)

// RunMigrations creates or updates every table the server uses.
func RunMigrations(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")

	if err := db.AutoMigrate(
		&models.User{},
		&models.Catch{},
		&models.CatchLike{},
		&models.CaseOpening{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.ActivityFeedEntry{},
		&models.RewardRetry{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return err
	}

	log.Info("database migrations completed")
	return nil
}

// createIndexes adds the read-path indexes AutoMigrate does not derive from
// struct tags.
func createIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_catches_user_created ON catches(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_catch_likes_catch ON catch_likes(catch_id)",
		"CREATE INDEX IF NOT EXISTS idx_case_openings_user ON case_openings(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_user_achievements_user ON user_achievements(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_activity_feed_user_created ON activity_feed(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_reward_retries_due ON reward_retries(status, next_attempt_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
