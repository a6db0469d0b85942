package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"social-trading-backend/internal/apperrors"
	"social-trading-backend/internal/models"
)

// ReferralService validates referral codes and credits referrers. A referral
// is processed at most once per referred user: referred_by is write-once and
// the referrer's bonus is deduped on the referred user's DID.
type ReferralService struct {
	db     *gorm.DB
	points *PointsService
}

func NewReferralService(db *gorm.DB, points *PointsService) *ReferralService {
	return &ReferralService{db: db, points: points}
}

// GenerateReferralCode produces a 6-character base58 code. The alphabet
// avoids 0/O and I/l confusion in shared links.
func GenerateReferralCode() (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate referral code: %w", err)
	}
	code := base58.Encode(b)
	if len(code) > 6 {
		code = code[:6]
	}
	return strings.ToUpper(code), nil
}

// CheckResult is the outcome of a referral-code lookup.
type CheckResult struct {
	Valid            bool   `json:"valid"`
	ReferrerDID      string `json:"referrer_did,omitempty"`
	ReferrerUsername string `json:"referrer_username,omitempty"`
}

// CheckReferralCode is a pure lookup with no side effects.
func (s *ReferralService) CheckReferralCode(code string) (*CheckResult, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", apperrors.ErrInvalidArgument)
	}

	var referrer models.User
	err := s.db.Where("referral_code = ?", strings.ToUpper(code)).First(&referrer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &CheckResult{Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}

	return &CheckResult{
		Valid:            true,
		ReferrerDID:      referrer.PrivyDID,
		ReferrerUsername: referrer.Username,
	}, nil
}

// ProcessReferral applies a referral code to a newly signed-up user. Fails
// closed (false, no mutation) when the code does not resolve, the user
// already has a referrer, or the code belongs to the user themselves. The
// referred_by write and the referrer credit commit in one transaction, so a
// retry after partial failure cannot double-credit.
func (s *ReferralService) ProcessReferral(code, newUserDID string) (bool, error) {
	if code == "" || newUserDID == "" {
		return false, fmt.Errorf("%w: code and user are required", apperrors.ErrInvalidArgument)
	}

	var referrer models.User
	err := s.db.Where("referral_code = ?", strings.ToUpper(code)).First(&referrer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithField("code", code).Info("referral code not found")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if referrer.PrivyDID == newUserDID {
		logrus.WithField("privy_did", newUserDID).Info("self-referral rejected")
		return false, nil
	}

	var newUser models.User
	if err := s.db.Where("privy_did = ?", newUserDID).First(&newUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, newUserDID)
		}
		return false, err
	}
	if newUser.ReferredBy != nil {
		logrus.WithField("privy_did", newUserDID).Info("user already has a referrer")
		return false, nil
	}

	applied := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Guarded write-once update; a concurrent ProcessReferral for the
		// same user loses the race and affects zero rows.
		result := tx.Model(&models.User{}).
			Where("privy_did = ? AND referred_by IS NULL", newUserDID).
			Update("referred_by", referrer.PrivyDID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		cfg, _ := LookupAction(ActionReferralBonus)
		if _, err := s.points.awardTx(tx, referrer.PrivyDID, ActionReferralBonus, cfg.Points,
			fmt.Sprintf("Referral bonus for inviting %s", newUser.Username),
			models.JSONB{"referred_did": newUserDID}, cfg); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to process referral: %w", err)
	}

	if applied {
		logrus.WithFields(logrus.Fields{
			"code":     code,
			"referrer": referrer.PrivyDID,
			"referred": newUserDID,
		}).Info("referral processed")

		if s.points.achievements != nil {
			if err := s.points.achievements.Evaluate(referrer.PrivyDID); err != nil {
				logrus.WithError(err).Warn("achievement evaluation failed after referral")
			}
		}
	}

	return applied, nil
}

// ReferredUser is one entry in a referrer's referral list.
type ReferredUser struct {
	PrivyDID  string `json:"privy_did"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// GetUserReferrals returns the users referred by the given user.
func (s *ReferralService) GetUserReferrals(privyDID string) ([]ReferredUser, error) {
	var referred []models.User
	if err := s.db.Where("referred_by = ?", privyDID).Order("created_at ASC").Find(&referred).Error; err != nil {
		return nil, err
	}

	out := make([]ReferredUser, 0, len(referred))
	for _, u := range referred {
		out = append(out, ReferredUser{
			PrivyDID:  u.PrivyDID,
			Username:  u.Username,
			AvatarURL: u.AvatarURL,
		})
	}
	return out, nil
}
