package models

import (
	"time"
)

// Follow is a directed edge in the local social graph. Unique per ordered
// (follower, following) pair; self-follows are rejected before insert.
type Follow struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FollowerDID  string    `gorm:"column:follower_did;not null;uniqueIndex:idx_follow_pair" json:"follower_did"`
	FollowingDID string    `gorm:"column:following_did;not null;uniqueIndex:idx_follow_pair;index" json:"following_did"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for Follow model
func (Follow) TableName() string {
	return "follows"
}
