package services

import (
	"fmt"
	"time"
)

// Point-awarding action types. The catalog below is the single source of
// truth for point values and duplicate-detection policy; unknown action
// types are rejected before any write.
const (
	ActionFollowUser           = "FOLLOW_USER"
	ActionCreateComment        = "CREATE_COMMENT"
	ActionReceiveLike          = "RECEIVE_LIKE"
	ActionDailyLogin           = "DAILY_LOGIN"
	ActionCompleteProfile      = "COMPLETE_PROFILE"
	ActionReferralBonus        = "REFERRAL_BONUS"
	ActionTradeVolumeMilestone = "TRADE_VOLUME_MILESTONE"
	ActionAchievementUnlock    = "ACHIEVEMENT_UNLOCK"
	ActionNewUserSignup        = "NEW_USER_SIGNUP"
)

// DedupPolicy selects how the dedup key for an award is derived.
type DedupPolicy int

const (
	// DedupNone allows unlimited awards of the action.
	DedupNone DedupPolicy = iota
	// DedupOncePerUser allows a single award per user, ever.
	DedupOncePerUser
	// DedupDailyUTC allows one award per UTC calendar day per user.
	DedupDailyUTC
	// DedupMetadataKey allows one award per distinct value of the configured
	// metadata field per user (e.g. one referral bonus per referred user).
	DedupMetadataKey
)

// ActionConfig maps an action type to its point value, description template
// and dedup policy.
type ActionConfig struct {
	Points        int64
	Description   string
	Dedup         DedupPolicy
	MetadataField string // set iff Dedup == DedupMetadataKey
}

var actionCatalog = map[string]ActionConfig{
	ActionFollowUser:           {Points: 10, Description: "Followed a user", Dedup: DedupMetadataKey, MetadataField: "following_did"},
	ActionCreateComment:        {Points: 5, Description: "Posted a comment", Dedup: DedupNone},
	ActionReceiveLike:          {Points: 2, Description: "Received a like", Dedup: DedupMetadataKey, MetadataField: "like_key"},
	ActionDailyLogin:           {Points: 10, Description: "Daily login bonus", Dedup: DedupDailyUTC},
	ActionCompleteProfile:      {Points: 25, Description: "Completed profile", Dedup: DedupOncePerUser},
	ActionReferralBonus:        {Points: 50, Description: "Referral bonus", Dedup: DedupMetadataKey, MetadataField: "referred_did"},
	ActionTradeVolumeMilestone: {Points: 100, Description: "Trading volume milestone", Dedup: DedupMetadataKey, MetadataField: "milestone"},
	ActionAchievementUnlock:    {Points: 0, Description: "Achievement unlocked", Dedup: DedupMetadataKey, MetadataField: "achievement_code"},
	ActionNewUserSignup:        {Points: 20, Description: "Welcome aboard", Dedup: DedupOncePerUser},
}

// LookupAction returns the catalog entry for an action type.
func LookupAction(actionType string) (ActionConfig, bool) {
	cfg, ok := actionCatalog[actionType]
	return cfg, ok
}

// dedupKeyFor derives the unique ledger key for an award, or nil when the
// action is unlimited. "Daily" means UTC calendar day.
func dedupKeyFor(privyDID, actionType string, cfg ActionConfig, metadata map[string]interface{}, now time.Time) (*string, error) {
	var key string
	switch cfg.Dedup {
	case DedupNone:
		return nil, nil
	case DedupOncePerUser:
		key = fmt.Sprintf("%s:%s", privyDID, actionType)
	case DedupDailyUTC:
		key = fmt.Sprintf("%s:%s:%s", privyDID, actionType, now.UTC().Format("2006-01-02"))
	case DedupMetadataKey:
		value, ok := metadata[cfg.MetadataField]
		if !ok || value == nil || value == "" {
			return nil, fmt.Errorf("metadata field %q is required for %s", cfg.MetadataField, actionType)
		}
		key = fmt.Sprintf("%s:%s:%v", privyDID, actionType, value)
	}
	return &key, nil
}
