package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"social-trading-backend/internal/apperrors"
	"social-trading-backend/internal/models"
)

// OG grant reasons. Written once when the grant happens, stable thereafter.
const (
	OGReasonManual       = "manual_grant"
	OGReasonVolume10K    = "volume_threshold_10k"
	OGReasonEarlyActive  = "early_active_trader"
	ogMinAccountAgeDays  = 30
	ogEarlyActiveVolume  = 1000
	ogVolumeThresholdUSD = 10000
)

// ogRule is one entry in the ordered grant-rule table. Rules are checked in
// order; the first match wins and its reason is recorded. Manual grants are
// pre-existing state and short-circuit before the table is consulted.
type ogRule struct {
	reason string
	check  func(user *models.User, now time.Time) bool
}

var ogRules = []ogRule{
	{
		reason: OGReasonVolume10K,
		check: func(user *models.User, _ time.Time) bool {
			return user.TotalTradingVolumeUSD.GreaterThanOrEqual(decimal.NewFromInt(ogVolumeThresholdUSD))
		},
	},
	{
		reason: OGReasonEarlyActive,
		check: func(user *models.User, now time.Time) bool {
			age := now.Sub(user.CreatedAt)
			return age >= ogMinAccountAgeDays*24*time.Hour &&
				user.TotalTradingVolumeUSD.GreaterThanOrEqual(decimal.NewFromInt(ogEarlyActiveVolume))
		},
	},
}

// Cumulative-volume milestones that earn TRADE_VOLUME_MILESTONE points.
var volumeMilestones = []int64{1000, 10000, 100000}

// OGService maintains cumulative trading volume and derives the one-way OG
// flag. Grants are monotonic: recomputation never revokes or rewrites the
// recorded reason.
type OGService struct {
	db     *gorm.DB
	points *PointsService
}

func NewOGService(db *gorm.DB, points *PointsService) *OGService {
	return &OGService{db: db, points: points}
}

// VolumeResult reports one volume update. OGGranted is true only on the call
// that performed the grant; later calls keep accumulating volume without
// touching the OG fields.
type VolumeResult struct {
	NewTotalVolume decimal.Decimal `json:"new_total_volume"`
	OGGranted      bool            `json:"og_granted"`
	OGReason       string          `json:"og_reason,omitempty"`
}

// UpdateTradingVolumeAndCheckOG adds tradeVolumeUSD to the user's cumulative
// volume and evaluates the grant rules against the new state.
func (s *OGService) UpdateTradingVolumeAndCheckOG(privyDID string, tradeVolumeUSD decimal.Decimal) (*VolumeResult, error) {
	if tradeVolumeUSD.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: trade volume must be positive", apperrors.ErrInvalidArgument)
	}

	var user models.User
	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return nil, err
	}

	previousVolume := user.TotalTradingVolumeUSD

	if err := s.db.Model(&models.User{}).Where("privy_did = ?", privyDID).
		UpdateColumn("total_trading_volume_usd", gorm.Expr("total_trading_volume_usd + ?", tradeVolumeUSD)).Error; err != nil {
		return nil, fmt.Errorf("failed to update trading volume: %w", err)
	}

	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		return nil, err
	}

	s.awardVolumeMilestones(privyDID, previousVolume, user.TotalTradingVolumeUSD)

	result := &VolumeResult{NewTotalVolume: user.TotalTradingVolumeUSD}

	// Already OG: volume keeps accumulating but the grant is final.
	if user.IsOG {
		return result, nil
	}

	now := time.Now()
	for _, rule := range ogRules {
		if !rule.check(&user, now) {
			continue
		}
		granted, err := s.grant(privyDID, rule.reason)
		if err != nil {
			return nil, err
		}
		if granted {
			result.OGGranted = true
			result.OGReason = rule.reason
		}
		break
	}

	return result, nil
}

// grant flips is_og under the monotonic guard. A concurrent grant loses the
// race, affects zero rows and is not reported as a fresh grant.
func (s *OGService) grant(privyDID, reason string) (bool, error) {
	result := s.db.Model(&models.User{}).
		Where("privy_did = ? AND is_og = ?", privyDID, false).
		Updates(map[string]interface{}{
			"is_og":     true,
			"og_reason": reason,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to grant OG status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	logrus.WithFields(logrus.Fields{
		"privy_did": privyDID,
		"reason":    reason,
	}).Info("OG status granted")
	return true, nil
}

// GrantManualOG records an admin grant. Idempotent: granting an existing OG
// is a conflict, never an overwrite of the original reason.
func (s *OGService) GrantManualOG(privyDID string) error {
	var user models.User
	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return err
	}

	granted, err := s.grant(privyDID, OGReasonManual)
	if err != nil {
		return err
	}
	if !granted {
		return fmt.Errorf("%w: user %s is already OG", apperrors.ErrConflict, privyDID)
	}
	return nil
}

// awardVolumeMilestones credits milestone points for every cumulative
// threshold crossed by this update. Best-effort; failures are logged.
func (s *OGService) awardVolumeMilestones(privyDID string, before, after decimal.Decimal) {
	for _, milestone := range volumeMilestones {
		m := decimal.NewFromInt(milestone)
		if before.GreaterThanOrEqual(m) || after.LessThan(m) {
			continue
		}
		_, err := s.points.Award(privyDID, ActionTradeVolumeMilestone,
			models.JSONB{"milestone": milestone})
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"privy_did": privyDID,
				"milestone": milestone,
			}).Warn("failed to award volume milestone")
		}
	}
}

// OGProgress is the read-only progress view toward the nearest unmet
// threshold. Progress is 0 when the user is already OG.
type OGProgress struct {
	IsOG            bool            `json:"is_og"`
	OGReason        string          `json:"og_reason,omitempty"`
	CurrentVolume   decimal.Decimal `json:"current_volume"`
	NextThreshold   decimal.Decimal `json:"next_threshold"`
	ProgressPercent float64         `json:"progress_percent"`
}

// GetOGProgress returns progress toward OG without mutating state.
func (s *OGService) GetOGProgress(privyDID string) (*OGProgress, error) {
	var user models.User
	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return nil, err
	}

	progress := &OGProgress{
		IsOG:          user.IsOG,
		CurrentVolume: user.TotalTradingVolumeUSD,
	}
	if user.OGReason != nil {
		progress.OGReason = *user.OGReason
	}
	if user.IsOG {
		return progress, nil
	}

	// Nearest unmet volume threshold: the early-active rule at $1k when the
	// account is old enough, otherwise the $10k volume rule.
	threshold := decimal.NewFromInt(ogVolumeThresholdUSD)
	if time.Since(user.CreatedAt) >= ogMinAccountAgeDays*24*time.Hour {
		threshold = decimal.NewFromInt(ogEarlyActiveVolume)
	}
	progress.NextThreshold = threshold

	if threshold.IsPositive() {
		pct, _ := user.TotalTradingVolumeUSD.Div(threshold).Mul(decimal.NewFromInt(100)).Float64()
		if pct > 100 {
			pct = 100
		}
		progress.ProgressPercent = pct
	}

	return progress, nil
}
