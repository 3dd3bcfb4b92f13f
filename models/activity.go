package models

import "time"

// Activity feed entry types.
const (
	ActivityAchievement = "achievement"
	ActivityCatch       = "catch"
)

// ActivityFeedEntry is an append-only feed record.
type ActivityFeedEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Content   string    `json:"content" gorm:"not null;type:text"`
	Type      string    `json:"type" gorm:"not null;size:30;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (ActivityFeedEntry) TableName() string {
	return "activity_feed"
}
