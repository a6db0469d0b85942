package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"social-trading-backend/internal/apperrors"
	"social-trading-backend/internal/models"
)

// PointsService records point awards. Every award writes one immutable
// PointTransaction row and increments the user's running total in the same
// database transaction, so the ledger sum and the total never diverge.
type PointsService struct {
	db           *gorm.DB
	achievements *AchievementService
}

func NewPointsService(db *gorm.DB) *PointsService {
	return &PointsService{db: db}
}

// AttachAchievementService wires the post-commit achievement evaluation
// hook. Set after construction because the two services reference each other.
func (s *PointsService) AttachAchievementService(a *AchievementService) {
	s.achievements = a
}

// AwardResult reports the outcome of an award attempt. Duplicate awards are
// a zero-award result, not an error.
type AwardResult struct {
	PointsAwarded int64 `json:"points_awarded"`
	NewTotal      int64 `json:"new_total"`
	Duplicate     bool  `json:"duplicate"`
}

// errDuplicateAward aborts the award transaction when the dedup key already
// exists; translated to a zero-award result by the caller.
var errDuplicateAward = errors.New("duplicate award")

// Award records points for an action from the fixed catalog.
func (s *PointsService) Award(privyDID, actionType string, metadata models.JSONB) (*AwardResult, error) {
	cfg, ok := LookupAction(actionType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action type %q", apperrors.ErrInvalidArgument, actionType)
	}

	result, err := s.awardTx(s.db, privyDID, actionType, cfg.Points, cfg.Description, metadata, cfg)
	if err != nil {
		return nil, err
	}

	s.evaluateAchievements(privyDID, actionType)
	return result, nil
}

// AwardWithPoints records an award with an explicit point value, used for
// actions whose reward varies per instance (achievement unlocks).
func (s *PointsService) AwardWithPoints(privyDID, actionType string, points int64, description string, metadata models.JSONB) (*AwardResult, error) {
	cfg, ok := LookupAction(actionType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action type %q", apperrors.ErrInvalidArgument, actionType)
	}

	result, err := s.awardTx(s.db, privyDID, actionType, points, description, metadata, cfg)
	if err != nil {
		return nil, err
	}

	s.evaluateAchievements(privyDID, actionType)
	return result, nil
}

// awardTx performs the ledger write against db, which may be an open
// transaction when the caller needs the award to be atomic with its own
// writes (referral processing).
func (s *PointsService) awardTx(db *gorm.DB, privyDID, actionType string, points int64, description string, metadata models.JSONB, cfg ActionConfig) (*AwardResult, error) {
	var user models.User
	if err := db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	dedupKey, err := dedupKeyFor(privyDID, actionType, cfg, metadata, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}

	// Fast path for retries: an existing row with the same dedup key means
	// the award already happened.
	if dedupKey != nil {
		var count int64
		if err := db.Model(&models.PointTransaction{}).Where("dedup_key = ?", *dedupKey).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return &AwardResult{PointsAwarded: 0, NewTotal: user.TotalPoints, Duplicate: true}, nil
		}
	}

	var newTotal int64
	err = db.Transaction(func(tx *gorm.DB) error {
		ptx := models.PointTransaction{
			PrivyDID:    privyDID,
			Points:      points,
			ActionType:  actionType,
			Description: description,
			Metadata:    metadata,
			DedupKey:    dedupKey,
		}
		if err := tx.Create(&ptx).Error; err != nil {
			// The unique index on dedup_key is the race-safe duplicate
			// guard; a concurrent identical award loses here.
			if isDuplicateKeyErr(err) {
				return errDuplicateAward
			}
			return fmt.Errorf("failed to record point transaction: %w", err)
		}

		if err := tx.Model(&models.User{}).Where("privy_did = ?", privyDID).
			UpdateColumn("total_points", gorm.Expr("total_points + ?", points)).Error; err != nil {
			return fmt.Errorf("failed to update total points: %w", err)
		}

		var updated models.User
		if err := tx.Select("total_points").Where("privy_did = ?", privyDID).First(&updated).Error; err != nil {
			return err
		}
		newTotal = updated.TotalPoints
		return nil
	})

	if errors.Is(err, errDuplicateAward) {
		logrus.WithFields(logrus.Fields{
			"privy_did":   privyDID,
			"action_type": actionType,
		}).Info("duplicate point award skipped")
		return &AwardResult{PointsAwarded: 0, NewTotal: user.TotalPoints, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"privy_did":   privyDID,
		"action_type": actionType,
		"points":      points,
		"new_total":   newTotal,
	}).Info("points awarded")

	return &AwardResult{PointsAwarded: points, NewTotal: newTotal}, nil
}

// evaluateAchievements runs the best-effort post-commit hook. A failure here
// never rolls back or fails the award that triggered it. Achievement-unlock
// awards are excluded to keep the evaluation from re-entering itself.
func (s *PointsService) evaluateAchievements(privyDID, actionType string) {
	if s.achievements == nil || actionType == ActionAchievementUnlock {
		return
	}
	if err := s.achievements.Evaluate(privyDID); err != nil {
		logrus.WithError(err).WithField("privy_did", privyDID).
			Warn("achievement evaluation failed after point award")
	}
}

// GetHistory returns a page of the user's point transactions, newest first.
func (s *PointsService) GetHistory(privyDID string, limit, offset int) ([]models.PointTransaction, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.Model(&models.PointTransaction{}).Where("privy_did = ?", privyDID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transactions []models.PointTransaction
	if err := s.db.Where("privy_did = ?", privyDID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&transactions).Error; err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}

// PointsSummary is the per-user points overview.
type PointsSummary struct {
	PrivyDID         string `json:"privy_did"`
	TotalPoints      int64  `json:"total_points"`
	TransactionCount int64  `json:"transaction_count"`
}

// GetSummary returns the user's current total and ledger size.
func (s *PointsService) GetSummary(privyDID string) (*PointsSummary, error) {
	var user models.User
	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.PointTransaction{}).Where("privy_did = ?", privyDID).Count(&count).Error; err != nil {
		return nil, err
	}

	return &PointsSummary{
		PrivyDID:         privyDID,
		TotalPoints:      user.TotalPoints,
		TransactionCount: count,
	}, nil
}
