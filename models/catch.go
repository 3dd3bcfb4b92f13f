// models/catch.go - Catches, likes and case openings (trigger facts)
package models

import (
	"time"
)

// Catch is one recorded fish.
type Catch struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Species   string    `json:"species" gorm:"not null;size:120"`
	WeightKg  float64   `json:"weight_kg" gorm:"default:0"`
	LengthCm  float64   `json:"length_cm" gorm:"default:0"`
	Location  string    `json:"location" gorm:"size:200"`
	PhotoURL  string    `json:"photo_url" gorm:"size:500"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// CatchLike is one user's like on a catch. A user likes a catch at most once.
type CatchLike struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CatchID   uint      `json:"catch_id" gorm:"not null;uniqueIndex:idx_catch_like_user"`
	Catch     *Catch    `json:"catch,omitempty" gorm:"foreignKey:CatchID"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_catch_like_user"`
	CreatedAt time.Time `json:"created_at"`
}

// CaseOpening records a loot case being opened. The loot itself is owned by
// the shop service.
type CaseOpening struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	CaseType  string    `json:"case_type" gorm:"not null;size:50"`
	CreatedAt time.Time `json:"created_at"`
}

func (Catch) TableName() string {
	return "catches"
}

func (CatchLike) TableName() string {
	return "catch_likes"
}

func (CaseOpening) TableName() string {
	return "case_openings"
}
