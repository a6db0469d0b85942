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

// Stats an achievement requirement can be measured against.
const (
	StatTotalPoints      = "total_points"
	StatCommentsCreated  = "comments_created"
	StatLikesReceived    = "likes_received"
	StatFollowingCount   = "following_count"
	StatFollowersCount   = "followers_count"
	StatReferralsCount   = "referrals_count"
	StatTradingVolumeUSD = "trading_volume_usd"
)

// achievementCatalog is the fixed seed catalog, keyed by Code.
var achievementCatalog = []models.Achievement{
	{Code: "FIRST_FOLLOW", Name: "Social Butterfly", Description: "Follow your first user", Category: "social", PointsReward: 10, RequirementStat: StatFollowingCount, RequirementValue: 1},
	{Code: "POPULAR_10", Name: "Crowd Favorite", Description: "Reach 10 followers", Category: "social", PointsReward: 25, RequirementStat: StatFollowersCount, RequirementValue: 10},
	{Code: "COMMENTER_10", Name: "Conversationalist", Description: "Post 10 comments", Category: "social", PointsReward: 20, RequirementStat: StatCommentsCreated, RequirementValue: 10},
	{Code: "LIKED_25", Name: "Well Liked", Description: "Receive 25 likes on your comments", Category: "social", PointsReward: 25, RequirementStat: StatLikesReceived, RequirementValue: 25},
	{Code: "RECRUITER_5", Name: "Recruiter", Description: "Refer 5 friends", Category: "referral", PointsReward: 100, RequirementStat: StatReferralsCount, RequirementValue: 5},
	{Code: "POINTS_500", Name: "Point Collector", Description: "Earn 500 total points", Category: "points", PointsReward: 50, RequirementStat: StatTotalPoints, RequirementValue: 500},
	{Code: "POINTS_2500", Name: "Point Hoarder", Description: "Earn 2500 total points", Category: "points", PointsReward: 150, RequirementStat: StatTotalPoints, RequirementValue: 2500},
	{Code: "TRADER_1K", Name: "Getting Started", Description: "Trade $1,000 in cumulative volume", Category: "trading", PointsReward: 50, RequirementStat: StatTradingVolumeUSD, RequirementValue: 1000},
	{Code: "TRADER_10K", Name: "Serious Trader", Description: "Trade $10,000 in cumulative volume", Category: "trading", PointsReward: 200, RequirementStat: StatTradingVolumeUSD, RequirementValue: 10000},
}

// AchievementService seeds the achievement catalog and unlocks achievements
// when user statistics cross their thresholds. Unlocks are monotonic and
// unique per (user, achievement).
type AchievementService struct {
	db     *gorm.DB
	points *PointsService
}

func NewAchievementService(db *gorm.DB, points *PointsService) *AchievementService {
	return &AchievementService{db: db, points: points}
}

// InitializeAchievements seeds the catalog. Safe to re-run: existing rows
// are matched by code and never duplicated, and unlock records are untouched.
func (s *AchievementService) InitializeAchievements() error {
	for _, def := range achievementCatalog {
		var existing models.Achievement
		err := s.db.Where("code = ?", def.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up achievement %s: %w", def.Code, err)
		}

		record := def
		if err := s.db.Create(&record).Error; err != nil {
			if isDuplicateKeyErr(err) {
				continue
			}
			return fmt.Errorf("failed to seed achievement %s: %w", def.Code, err)
		}
	}

	logrus.WithField("count", len(achievementCatalog)).Info("achievement catalog initialized")
	return nil
}

// userStats is the snapshot Evaluate measures requirements against.
type userStats struct {
	totalPoints      int64
	commentsCreated  int64
	likesReceived    int64
	followingCount   int64
	followersCount   int64
	referralsCount   int64
	tradingVolumeUSD decimal.Decimal
}

func (s *AchievementService) loadStats(user *models.User) (*userStats, error) {
	stats := &userStats{
		totalPoints:      user.TotalPoints,
		tradingVolumeUSD: user.TotalTradingVolumeUSD,
	}

	if err := s.db.Model(&models.Comment{}).Where("author_did = ?", user.PrivyDID).Count(&stats.commentsCreated).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Like{}).
		Joins("JOIN comments ON comments.id = likes.comment_id").
		Where("comments.author_did = ?", user.PrivyDID).
		Count(&stats.likesReceived).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Follow{}).Where("follower_did = ?", user.PrivyDID).Count(&stats.followingCount).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Follow{}).Where("following_did = ?", user.PrivyDID).Count(&stats.followersCount).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.User{}).Where("referred_by = ?", user.PrivyDID).Count(&stats.referralsCount).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// statValue resolves a requirement stat to its current value. Trading volume
// is compared in whole dollars.
func (st *userStats) statValue(stat string) (int64, bool) {
	switch stat {
	case StatTotalPoints:
		return st.totalPoints, true
	case StatCommentsCreated:
		return st.commentsCreated, true
	case StatLikesReceived:
		return st.likesReceived, true
	case StatFollowingCount:
		return st.followingCount, true
	case StatFollowersCount:
		return st.followersCount, true
	case StatReferralsCount:
		return st.referralsCount, true
	case StatTradingVolumeUSD:
		return st.tradingVolumeUSD.IntPart(), true
	}
	return 0, false
}

// Evaluate checks every achievement definition against the user's current
// statistics and unlocks any newly satisfied one. Safe to call repeatedly:
// the unique (user, achievement) index and the bonus dedup key keep both the
// unlock and its point reward single-shot.
func (s *AchievementService) Evaluate(privyDID string) error {
	var user models.User
	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return err
	}

	stats, err := s.loadStats(&user)
	if err != nil {
		return fmt.Errorf("failed to load user stats: %w", err)
	}

	var definitions []models.Achievement
	if err := s.db.Find(&definitions).Error; err != nil {
		return err
	}

	var unlockedIDs []uint
	if err := s.db.Model(&models.UserAchievement{}).Where("privy_did = ?", privyDID).
		Pluck("achievement_id", &unlockedIDs).Error; err != nil {
		return err
	}
	unlocked := make(map[uint]bool, len(unlockedIDs))
	for _, id := range unlockedIDs {
		unlocked[id] = true
	}

	for _, def := range definitions {
		if unlocked[def.ID] {
			continue
		}
		value, ok := stats.statValue(def.RequirementStat)
		if !ok || value < def.RequirementValue {
			continue
		}
		if err := s.unlock(privyDID, &def); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"privy_did":   privyDID,
				"achievement": def.Code,
			}).Warn("failed to unlock achievement")
		}
	}

	return nil
}

func (s *AchievementService) unlock(privyDID string, def *models.Achievement) error {
	record := models.UserAchievement{
		PrivyDID:      privyDID,
		AchievementID: def.ID,
		UnlockedAt:    time.Now(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		if isDuplicateKeyErr(err) {
			// Concurrent evaluation already unlocked it.
			return nil
		}
		return err
	}

	logrus.WithFields(logrus.Fields{
		"privy_did":   privyDID,
		"achievement": def.Code,
	}).Info("achievement unlocked")

	if def.PointsReward > 0 {
		_, err := s.points.AwardWithPoints(privyDID, ActionAchievementUnlock, def.PointsReward,
			fmt.Sprintf("Achievement unlocked: %s", def.Name),
			models.JSONB{"achievement_code": def.Code, "achievement_id": def.ID})
		if err != nil {
			return fmt.Errorf("failed to award achievement bonus: %w", err)
		}
	}

	return nil
}

// GetUserAchievements returns the user's unlocked achievements.
func (s *AchievementService) GetUserAchievements(privyDID string) ([]models.UserAchievement, error) {
	var records []models.UserAchievement
	if err := s.db.Where("privy_did = ?", privyDID).Preload("Achievement").
		Order("unlocked_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetCatalog returns all achievement definitions.
func (s *AchievementService) GetCatalog() ([]models.Achievement, error) {
	var definitions []models.Achievement
	if err := s.db.Order("id ASC").Find(&definitions).Error; err != nil {
		return nil, err
	}
	return definitions, nil
}
