package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"social-trading-backend/internal/apperrors"
	"social-trading-backend/internal/models"
)

// Leaderboard periods. Ranking sums point transactions inside the window;
// "all" is served from users.total_points, which equals the full-window sum
// by the ledger invariant.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodAll     = "all"
)

const maxLeaderboardLimit = 100

// LeaderboardService ranks users by windowed points.
type LeaderboardService struct {
	db *gorm.DB
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{db: db}
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank      int       `gorm:"-" json:"rank"`
	PrivyDID  string    `gorm:"column:privy_did" json:"privy_did"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	Points    int64     `json:"points"`
	IsOG      bool      `json:"is_og"`
	CreatedAt time.Time `json:"-"`
}

// LeaderboardResult is the page plus, when the requesting user falls outside
// it, that user's own rank over the same window.
type LeaderboardResult struct {
	Entries            []LeaderboardEntry `json:"entries"`
	Period             string             `json:"period"`
	RequestingUserRank *LeaderboardEntry  `json:"requesting_user_rank,omitempty"`
}

// windowStart returns the inclusive lower bound for a period, or zero time
// for the unbounded "all" period.
func windowStart(period string, now time.Time) (time.Time, error) {
	switch period {
	case PeriodDaily:
		return now.Add(-24 * time.Hour), nil
	case PeriodWeekly:
		return now.Add(-7 * 24 * time.Hour), nil
	case PeriodMonthly:
		return now.Add(-30 * 24 * time.Hour), nil
	case PeriodAll:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("%w: unknown period %q", apperrors.ErrInvalidArgument, period)
}

// GetLeaderboard returns the top limit users for the period, ordered by
// windowed points descending with earlier account creation breaking ties.
// When privyDID is non-empty and absent from the page, the result carries
// that user's rank computed over the same window.
func (s *LeaderboardService) GetLeaderboard(limit int, period, privyDID string) (*LeaderboardResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be a positive integer", apperrors.ErrInvalidArgument)
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	since, err := windowStart(period, time.Now())
	if err != nil {
		return nil, err
	}

	entries, err := s.topEntries(limit, since)
	if err != nil {
		return nil, err
	}

	result := &LeaderboardResult{Entries: entries, Period: period}

	if privyDID != "" {
		inPage := false
		for _, e := range entries {
			if e.PrivyDID == privyDID {
				inPage = true
				break
			}
		}
		if !inPage {
			own, err := s.userRank(privyDID, since)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return nil, err
			}
			if err == nil {
				result.RequestingUserRank = own
			}
		}
	}

	return result, nil
}

func (s *LeaderboardService) topEntries(limit int, since time.Time) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry

	if since.IsZero() {
		err := s.db.Model(&models.User{}).
			Select("privy_did, username, avatar_url, total_points AS points, is_og, created_at").
			Order("total_points DESC").Order("created_at ASC").
			Limit(limit).
			Scan(&entries).Error
		if err != nil {
			return nil, err
		}
	} else {
		err := s.db.Model(&models.User{}).
			Select("users.privy_did, users.username, users.avatar_url, COALESCE(SUM(point_transactions.points), 0) AS points, users.is_og, users.created_at").
			Joins("JOIN point_transactions ON point_transactions.privy_did = users.privy_did AND point_transactions.created_at >= ?", since).
			Group("users.privy_did").
			Order("points DESC").Order("users.created_at ASC").
			Limit(limit).
			Scan(&entries).Error
		if err != nil {
			return nil, err
		}
	}

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// userRank computes the windowed score and rank for one user: one plus the
// number of users strictly ahead under the (points DESC, created_at ASC)
// ordering. Deterministic regardless of storage iteration order.
func (s *LeaderboardService) userRank(privyDID string, since time.Time) (*LeaderboardEntry, error) {
	var user models.User
	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return nil, err
	}

	var score int64
	if since.IsZero() {
		score = user.TotalPoints
	} else {
		row := s.db.Model(&models.PointTransaction{}).
			Where("privy_did = ? AND created_at >= ?", privyDID, since).
			Select("COALESCE(SUM(points), 0)").Row()
		if err := row.Scan(&score); err != nil {
			return nil, err
		}
	}

	var ahead int64
	if since.IsZero() {
		err := s.db.Model(&models.User{}).
			Where("total_points > ? OR (total_points = ? AND created_at < ?)", score, score, user.CreatedAt).
			Count(&ahead).Error
		if err != nil {
			return nil, err
		}
	} else {
		err := s.db.Raw(`
			SELECT COUNT(*) FROM (
				SELECT u.privy_did, COALESCE(SUM(pt.points), 0) AS points, u.created_at
				FROM users u
				JOIN point_transactions pt ON pt.privy_did = u.privy_did AND pt.created_at >= ?
				WHERE u.privy_did <> ?
				GROUP BY u.privy_did, u.created_at
				HAVING COALESCE(SUM(pt.points), 0) > ?
					OR (COALESCE(SUM(pt.points), 0) = ? AND u.created_at < ?)
			) ranked`, since, privyDID, score, score, user.CreatedAt).
			Scan(&ahead).Error
		if err != nil {
			return nil, err
		}
	}

	return &LeaderboardEntry{
		Rank:      int(ahead) + 1,
		PrivyDID:  user.PrivyDID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		Points:    score,
		IsOG:      user.IsOG,
		CreatedAt: user.CreatedAt,
	}, nil
}
