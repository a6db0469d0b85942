package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB for PostgreSQL JSON support
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, &j)
}

// PointTransaction is an immutable, append-only ledger entry. The sum of a
// user's transactions must always equal users.total_points.
type PointTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PrivyDID    string    `gorm:"column:privy_did;not null;index" json:"privy_did"`
	User        User      `gorm:"foreignKey:PrivyDID;references:PrivyDID" json:"user,omitempty"`
	Points      int64     `gorm:"not null" json:"points"`
	ActionType  string    `gorm:"size:50;not null;index" json:"action_type"`
	Description string    `gorm:"type:text" json:"description"`
	Metadata    JSONB     `gorm:"type:jsonb" json:"metadata,omitempty"`
	DedupKey    *string   `gorm:"uniqueIndex;size:200" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for PointTransaction model
func (PointTransaction) TableName() string {
	return "point_transactions"
}
