package models

import "time"

// Retry kinds.
const (
	RetryKindPoints   = "points"
	RetryKindActivity = "activity"
)

// Retry statuses.
const (
	RetryStatusPending = "pending"
	RetryStatusDone    = "done"
	RetryStatusDead    = "dead"
)

// RewardRetry is a durable record of an unlock side effect that failed and
// still has to be applied. (UserID, AchievementID, Kind) is unique so an
// unlock enqueues each side effect at most once.
type RewardRetry struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	UserID        uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_reward_retry_key"`
	AchievementID string    `json:"achievement_id" gorm:"not null;size:64;uniqueIndex:idx_reward_retry_key"`
	Kind          string    `json:"kind" gorm:"not null;size:20;uniqueIndex:idx_reward_retry_key"`
	Points        int       `json:"points" gorm:"default:0"`
	Content       string    `json:"content" gorm:"type:text"`
	Status        string    `json:"status" gorm:"not null;size:20;default:'pending';index"`
	AttemptCount  int       `json:"attempt_count" gorm:"default:0"`
	NextAttemptAt time.Time `json:"next_attempt_at" gorm:"index"`
	LastError     string    `json:"last_error" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (RewardRetry) TableName() string {
	return "reward_retries"
}
