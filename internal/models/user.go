package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user in the system, keyed by the Privy auth subject
type User struct {
	PrivyDID              string          `gorm:"primaryKey;column:privy_did;size:100" json:"privy_did"`
	Username              string          `gorm:"uniqueIndex;not null;size:50" json:"username"`
	Bio                   string          `gorm:"type:text" json:"bio"`
	AvatarURL             string          `gorm:"type:text" json:"avatar_url"`
	PrimaryWalletAddress  *string         `gorm:"index" json:"primary_wallet_address,omitempty"`
	EmbeddedWalletAddress *string         `json:"embedded_wallet_address,omitempty"`
	TotalPoints           int64           `gorm:"default:0" json:"total_points"`
	TotalTradingVolumeUSD decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_trading_volume_usd"`
	IsOG                  bool            `gorm:"default:false" json:"is_og"`
	OGReason              *string         `gorm:"size:100" json:"og_reason,omitempty"`
	ReferralCode          string          `gorm:"uniqueIndex;not null;size:20" json:"referral_code"`
	ReferredBy            *string         `gorm:"index;size:100" json:"referred_by,omitempty"`
	CreatedAt             time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
