// models/achievement.go
package models

import "time"

// Achievement categories.
const (
	CategoryCatching = "catching"
	CategorySocial   = "social"
	CategoryGear     = "gear"
	CategoryExplorer = "explorer"
	CategorySpecial  = "special"
)

// Achievement rarities.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Achievement is an immutable catalog entry. Rows are written by catalog
// seeding only.
type Achievement struct {
	ID           string `gorm:"primaryKey;size:64" json:"id" yaml:"id"`
	Name         string `gorm:"not null" json:"name" yaml:"name"`
	Description  string `gorm:"not null" json:"description" yaml:"description"`
	Icon         string `json:"icon" yaml:"icon"`
	Category     string `gorm:"not null;index;size:20" json:"category" yaml:"category"`
	Rarity       string `gorm:"not null;size:20" json:"rarity" yaml:"rarity"`
	Criteria     string `gorm:"not null;size:64" json:"criteria" yaml:"criteria"`
	RewardPoints int    `gorm:"default:0" json:"reward_points" yaml:"reward_points"`
	IsSecret     bool   `gorm:"default:false" json:"is_secret" yaml:"is_secret"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

func (Achievement) TableName() string {
	return "achievements"
}

// AchievementState is the lifecycle position of one (user, achievement) pair.
type AchievementState string

const (
	StateUnseen     AchievementState = "UNSEEN"
	StateInProgress AchievementState = "IN_PROGRESS"
	StateUnlocked   AchievementState = "UNLOCKED"
)

// UserAchievement holds progress and unlock time for one (user, achievement)
// pair. Once UnlockedAt is set it never changes and Progress stays at 100.
type UserAchievement struct {
	UserID        uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	AchievementID string     `gorm:"primaryKey;size:64" json:"achievement_id"`
	Progress      int        `gorm:"not null;default:0" json:"progress"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Achievement *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}

// Unlocked reports whether the row is in its terminal state.
func (ua UserAchievement) Unlocked() bool {
	return ua.UnlockedAt != nil
}

// State derives the lifecycle state from a possibly missing row.
func (ua *UserAchievement) State() AchievementState {
	switch {
	case ua == nil:
		return StateUnseen
	case ua.UnlockedAt != nil:
		return StateUnlocked
	default:
		return StateInProgress
	}
}
