package models

import (
	"time"
)

// Achievement is a catalog entry describing an unlockable achievement.
// Seeded once by AchievementService.InitializeAchievements; Code is the
// stable natural key.
type Achievement struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Code             string    `gorm:"uniqueIndex;not null;size:50" json:"code"`
	Name             string    `gorm:"not null;size:100" json:"name"`
	Description      string    `gorm:"type:text" json:"description"`
	Category         string    `gorm:"size:50;index" json:"category"`
	PointsReward     int64     `gorm:"default:0" json:"points_reward"`
	RequirementStat  string    `gorm:"size:50;not null" json:"requirement_stat"`
	RequirementValue int64     `gorm:"not null" json:"requirement_value"`
	IconURL          string    `gorm:"type:text" json:"icon_url"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName specifies the table name for Achievement model
func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement records an unlock. Unique per (user, achievement) pair;
// unlocking is one-way.
type UserAchievement struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	PrivyDID      string      `gorm:"column:privy_did;not null;uniqueIndex:idx_user_achievement" json:"privy_did"`
	AchievementID uint        `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	Achievement   Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	UnlockedAt    time.Time   `json:"unlocked_at"`
}

// TableName specifies the table name for UserAchievement model
func (UserAchievement) TableName() string {
	return "user_achievements"
}
