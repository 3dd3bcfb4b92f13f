// models/user.go
package models

import (
	"time"
)

type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	Password    string `gorm:"not null" json:"-"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	Bio         string `json:"bio"`
	IsGuest     bool   `gorm:"default:false" json:"is_guest"`
	IsAdmin     bool   `gorm:"default:false" json:"is_admin"`

	// Points. Both counters only grow through reward issuance; spending
	// happens elsewhere and only touches CurrentPoints.
	CurrentPoints     int `gorm:"not null;default:0" json:"current_points"`
	TotalPointsEarned int `gorm:"not null;default:0" json:"total_points_earned"`

	// Timestamps
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`

	// Relationships
	Achievements []UserAchievement `gorm:"foreignKey:UserID" json:"achievements,omitempty"`
	Catches      []Catch           `gorm:"foreignKey:UserID" json:"catches,omitempty"`
}

func (User) TableName() string {
	return "users"
}
