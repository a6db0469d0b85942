package models

import (
	"time"
)

// Comment is a comment left on a profile. TapestryID correlates the local
// row with the external social-graph node; a "local-" prefixed id means the
// external write was degraded at creation time.
type Comment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AuthorDID  string    `gorm:"column:author_did;not null;index" json:"author_did"`
	ProfileDID string    `gorm:"column:profile_did;not null;index" json:"profile_did"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	TapestryID *string   `gorm:"size:100" json:"tapestry_id,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for Comment model
func (Comment) TableName() string {
	return "comments"
}

// Like marks a comment as liked by a user, unique per (user, comment) pair.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PrivyDID  string    `gorm:"column:privy_did;not null;uniqueIndex:idx_like_pair" json:"privy_did"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_like_pair;index" json:"comment_id"`
	Comment   Comment   `gorm:"foreignKey:CommentID" json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for Like model
func (Like) TableName() string {
	return "likes"
}
