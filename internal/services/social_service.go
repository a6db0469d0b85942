package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"social-trading-backend/internal/apperrors"
	"social-trading-backend/internal/models"
	"social-trading-backend/internal/tapestry"
)

// SocialGraphClient is the contract this service needs from the external
// social-graph service. Satisfied by *tapestry.Client; tests inject a fake.
type SocialGraphClient interface {
	FindOrCreateProfile(ctx context.Context, params tapestry.ProfileParams) (*tapestry.Profile, error)
	UpdateProfile(ctx context.Context, username string, params tapestry.ProfileParams) error
	CreateFollow(ctx context.Context, followerUsername, followeeUsername string) error
	DeleteFollow(ctx context.Context, followerUsername, followeeUsername string) error
	CreateComment(ctx context.Context, authorUsername, targetUsername, text string) (*tapestry.Comment, error)
	CreateLike(ctx context.Context, username, nodeID string) error
	DeleteLike(ctx context.Context, username, nodeID string) error
	GetFollowers(ctx context.Context, username string) ([]tapestry.Profile, error)
	GetFollowing(ctx context.Context, username string) ([]tapestry.Profile, error)
	GetSuggestedProfiles(ctx context.Context, walletAddress string) ([]tapestry.Profile, error)
	GetProfileByWallet(ctx context.Context, walletAddress string) (*tapestry.Profile, error)
}

// socialOp identifies a dual-write operation kind.
type socialOp string

const (
	opFollowCreate  socialOp = "follow_create"
	opFollowDelete  socialOp = "follow_delete"
	opCommentCreate socialOp = "comment_create"
	opLikeCreate    socialOp = "like_create"
	opLikeDelete    socialOp = "like_delete"
	opProfileCreate socialOp = "profile_create"
	opProfileUpdate socialOp = "profile_update"
)

// writePolicy is the dual-write strategy per operation kind. Creates favor
// availability: an external failure is logged and the local write proceeds.
// Deletes favor consistency: the external delete must succeed before the
// local row is removed, so the two stores cannot disagree about a removed
// relation.
type writePolicy struct {
	externalRequired bool
}

var writePolicies = map[socialOp]writePolicy{
	opFollowCreate:  {externalRequired: false},
	opFollowDelete:  {externalRequired: true},
	opCommentCreate: {externalRequired: false},
	opLikeCreate:    {externalRequired: false},
	opLikeDelete:    {externalRequired: true},
	opProfileCreate: {externalRequired: false},
	opProfileUpdate: {externalRequired: false},
}

// externalTimeout bounds every call to the external graph so a dual-write
// can never hang on the external dependency.
const externalTimeout = 10 * time.Second

// SocialService coordinates follow/comment/like writes across the external
// social graph and the local store. The local store is authoritative for
// reads and state checks.
type SocialService struct {
	db     *gorm.DB
	graph  SocialGraphClient
	points *PointsService
}

func NewSocialService(db *gorm.DB, graph SocialGraphClient, points *PointsService) *SocialService {
	return &SocialService{db: db, graph: graph, points: points}
}

// runExternal applies the write policy for op to the external call fn.
// Returns an error only when the policy makes the external write required.
func (s *SocialService) runExternal(op socialOp, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), externalTimeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}

	policy := writePolicies[op]
	if policy.externalRequired {
		logrus.WithError(err).WithField("operation", string(op)).
			Error("required external social-graph write failed, aborting")
		return fmt.Errorf("%w: %v", apperrors.ErrExternalRequired, err)
	}

	logrus.WithError(err).WithField("operation", string(op)).
		Warn("external social-graph write failed, proceeding locally")
	return nil
}

func (s *SocialService) getUser(privyDID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return nil, err
	}
	return &user, nil
}

// Follow creates a directed follow edge. The external write goes first; by
// policy its failure is tolerated and the local edge is still recorded.
func (s *SocialService) Follow(followerDID, followingDID string) error {
	if followerDID == followingDID {
		return fmt.Errorf("%w: cannot follow yourself", apperrors.ErrInvalidArgument)
	}

	follower, err := s.getUser(followerDID)
	if err != nil {
		return err
	}
	following, err := s.getUser(followingDID)
	if err != nil {
		return err
	}

	if err := s.runExternal(opFollowCreate, func(ctx context.Context) error {
		return s.graph.CreateFollow(ctx, follower.Username, following.Username)
	}); err != nil {
		return err
	}

	edge := models.Follow{FollowerDID: followerDID, FollowingDID: followingDID}
	if err := s.db.Create(&edge).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return fmt.Errorf("%w: already following", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create follow: %w", err)
	}

	// One follow award per ordered pair, ever; re-following after an
	// unfollow does not pay twice.
	if _, err := s.points.Award(followerDID, ActionFollowUser,
		models.JSONB{"following_did": followingDID}); err != nil {
		logrus.WithError(err).Warn("failed to award follow points")
	}

	return nil
}

// Unfollow removes a follow edge. The external delete is required: if it
// fails the local edge is left untouched.
func (s *SocialService) Unfollow(followerDID, followingDID string) error {
	follower, err := s.getUser(followerDID)
	if err != nil {
		return err
	}
	following, err := s.getUser(followingDID)
	if err != nil {
		return err
	}

	if err := s.runExternal(opFollowDelete, func(ctx context.Context) error {
		return s.graph.DeleteFollow(ctx, follower.Username, following.Username)
	}); err != nil {
		return err
	}

	result := s.db.Where("follower_did = ? AND following_did = ?", followerDID, followingDID).
		Delete(&models.Follow{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete follow: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: not following", apperrors.ErrNotFound)
	}

	return nil
}

// IsFollowing answers the state check from the local store, which is
// authoritative and sufficient by itself.
func (s *SocialService) IsFollowing(followerDID, followingDID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Follow{}).
		Where("follower_did = ? AND following_did = ?", followerDID, followingDID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FollowListResult is a merged follower/following read. DataSources names
// the sources that actually contributed; either source may be missing when
// it was unavailable.
type FollowListResult struct {
	Users            []models.User      `json:"users"`
	ExternalProfiles []tapestry.Profile `json:"external_profiles,omitempty"`
	DataSources      []string           `json:"data_sources"`
}

// followList merges the local edge list with the external graph's view,
// querying both in parallel and tolerating each source's failure
// independently.
func (s *SocialService) followList(privyDID string, localQuery func() ([]models.User, error), externalQuery func(ctx context.Context, username string) ([]tapestry.Profile, error)) (*FollowListResult, error) {
	user, err := s.getUser(privyDID)
	if err != nil {
		return nil, err
	}

	result := &FollowListResult{DataSources: []string{}}

	var wg sync.WaitGroup
	var localErr error
	var externalProfiles []tapestry.Profile
	var externalErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		result.Users, localErr = localQuery()
	}()
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), externalTimeout)
		defer cancel()
		externalProfiles, externalErr = externalQuery(ctx, user.Username)
	}()
	wg.Wait()

	if localErr != nil && externalErr != nil {
		return nil, fmt.Errorf("failed to load follow list: %w", localErr)
	}
	if localErr == nil {
		result.DataSources = append(result.DataSources, "local")
	} else {
		logrus.WithError(localErr).Warn("local follow list unavailable")
		result.Users = []models.User{}
	}
	if externalErr == nil {
		result.ExternalProfiles = externalProfiles
		result.DataSources = append(result.DataSources, "tapestry")
	} else {
		logrus.WithError(externalErr).Warn("external follow list unavailable")
	}

	return result, nil
}

// GetFollowers returns users following privyDID.
func (s *SocialService) GetFollowers(privyDID string) (*FollowListResult, error) {
	return s.followList(privyDID,
		func() ([]models.User, error) {
			var users []models.User
			err := s.db.
				Joins("JOIN follows ON follows.follower_did = users.privy_did").
				Where("follows.following_did = ?", privyDID).
				Order("follows.created_at DESC").
				Find(&users).Error
			return users, err
		},
		func(ctx context.Context, username string) ([]tapestry.Profile, error) {
			return s.graph.GetFollowers(ctx, username)
		})
}

// GetFollowing returns users privyDID follows.
func (s *SocialService) GetFollowing(privyDID string) (*FollowListResult, error) {
	return s.followList(privyDID,
		func() ([]models.User, error) {
			var users []models.User
			err := s.db.
				Joins("JOIN follows ON follows.following_did = users.privy_did").
				Where("follows.follower_did = ?", privyDID).
				Order("follows.created_at DESC").
				Find(&users).Error
			return users, err
		},
		func(ctx context.Context, username string) ([]tapestry.Profile, error) {
			return s.graph.GetFollowing(ctx, username)
		})
}

// CreateComment posts a comment on a profile. External write first; on
// degradation the comment still lands locally with a "local-" correlation id
// so it can be reconciled later.
func (s *SocialService) CreateComment(authorDID, profileDID, text string) (*models.Comment, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", apperrors.ErrInvalidArgument)
	}

	author, err := s.getUser(authorDID)
	if err != nil {
		return nil, err
	}
	target, err := s.getUser(profileDID)
	if err != nil {
		return nil, err
	}

	var externalID *string
	if err := s.runExternal(opCommentCreate, func(ctx context.Context) error {
		node, err := s.graph.CreateComment(ctx, author.Username, target.Username, text)
		if err != nil {
			return err
		}
		externalID = &node.ID
		return nil
	}); err != nil {
		return nil, err
	}
	if externalID == nil {
		localID := "local-" + uuid.NewString()
		externalID = &localID
	}

	comment := models.Comment{
		AuthorDID:  authorDID,
		ProfileDID: profileDID,
		Text:       text,
		TapestryID: externalID,
	}
	if err := s.db.Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	if _, err := s.points.Award(authorDID, ActionCreateComment, nil); err != nil {
		logrus.WithError(err).Warn("failed to award comment points")
	}

	return &comment, nil
}

// GetProfileComments returns comments left on a profile, newest first.
func (s *SocialService) GetProfileComments(profileDID string, limit, offset int) ([]models.Comment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	var comments []models.Comment
	if err := s.db.Where("profile_did = ?", profileDID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// externalNodeID returns the external graph node id for a comment, or ok
// false when the comment has no node there. A "local-" correlation id marks a
// comment created while the external write was degraded; the graph never
// issued a node for it, so likes on it skip the external side entirely.
func externalNodeID(comment *models.Comment) (string, bool) {
	if comment.TapestryID == nil {
		return "", false
	}
	if strings.HasPrefix(*comment.TapestryID, "local-") {
		return "", false
	}
	return *comment.TapestryID, true
}

// LikeComment records a like. The comment's author earns points, deduped on
// the (comment, liker) pair.
func (s *SocialService) LikeComment(privyDID string, commentID uint) error {
	user, err := s.getUser(privyDID)
	if err != nil {
		return err
	}

	var comment models.Comment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: comment %d", apperrors.ErrNotFound, commentID)
		}
		return err
	}

	if nodeID, ok := externalNodeID(&comment); ok {
		if err := s.runExternal(opLikeCreate, func(ctx context.Context) error {
			return s.graph.CreateLike(ctx, user.Username, nodeID)
		}); err != nil {
			return err
		}
	}

	like := models.Like{PrivyDID: privyDID, CommentID: commentID}
	if err := s.db.Create(&like).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return fmt.Errorf("%w: already liked", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create like: %w", err)
	}

	if comment.AuthorDID != privyDID {
		likeKey := fmt.Sprintf("comment:%d:by:%s", commentID, privyDID)
		if _, err := s.points.Award(comment.AuthorDID, ActionReceiveLike,
			models.JSONB{"like_key": likeKey}); err != nil {
			logrus.WithError(err).Warn("failed to award like points")
		}
	}

	return nil
}

// UnlikeComment removes a like. The external delete is required; on its
// failure the local like stays.
func (s *SocialService) UnlikeComment(privyDID string, commentID uint) error {
	user, err := s.getUser(privyDID)
	if err != nil {
		return err
	}

	var comment models.Comment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: comment %d", apperrors.ErrNotFound, commentID)
		}
		return err
	}

	if nodeID, ok := externalNodeID(&comment); ok {
		if err := s.runExternal(opLikeDelete, func(ctx context.Context) error {
			return s.graph.DeleteLike(ctx, user.Username, nodeID)
		}); err != nil {
			return err
		}
	}

	result := s.db.Where("privy_did = ? AND comment_id = ?", privyDID, commentID).
		Delete(&models.Like{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete like: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: like", apperrors.ErrNotFound)
	}

	return nil
}
