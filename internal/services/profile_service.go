package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"social-trading-backend/internal/apperrors"
	"social-trading-backend/internal/models"
	"social-trading-backend/internal/tapestry"
	"social-trading-backend/internal/utils"
)

// ProfileService manages local user profiles and mirrors them to the
// external social graph. Profile writes are create-class: an external
// failure is logged and the local write proceeds.
type ProfileService struct {
	db        *gorm.DB
	graph     SocialGraphClient
	points    *PointsService
	referrals *ReferralService
}

func NewProfileService(db *gorm.DB, graph SocialGraphClient, points *PointsService, referrals *ReferralService) *ProfileService {
	return &ProfileService{db: db, graph: graph, points: points, referrals: referrals}
}

// validateSolanaAddress rejects strings that are not valid Solana public
// keys before they reach the wallet columns.
func validateSolanaAddress(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("%w: invalid Solana address %q", apperrors.ErrInvalidArgument, address)
	}
	return nil
}

// ProfileInput carries the caller-supplied profile fields.
type ProfileInput struct {
	Username              string `json:"username"`
	Bio                   string `json:"bio"`
	AvatarURL             string `json:"avatar_url"`
	PrimaryWalletAddress  string `json:"primary_wallet_address"`
	EmbeddedWalletAddress string `json:"embedded_wallet_address"`
	ReferralCode          string `json:"referral_code"`
}

// FindOrCreateProfile returns the existing user for the DID or creates one.
// Creation generates a referral code, mirrors the profile to the external
// graph (tolerated failure) and processes an optional referral code.
func (s *ProfileService) FindOrCreateProfile(privyDID string, input ProfileInput) (*models.User, bool, error) {
	if privyDID == "" {
		return nil, false, fmt.Errorf("%w: privy DID is required", apperrors.ErrInvalidArgument)
	}

	var existing models.User
	err := s.db.Where("privy_did = ?", privyDID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	username := input.Username
	if username == "" {
		username, err = utils.GenerateUsername()
		if err != nil {
			return nil, false, err
		}
	}

	user := models.User{
		PrivyDID:  privyDID,
		Username:  username,
		Bio:       input.Bio,
		AvatarURL: input.AvatarURL,
	}

	if input.PrimaryWalletAddress != "" {
		if err := validateSolanaAddress(input.PrimaryWalletAddress); err != nil {
			return nil, false, err
		}
		user.PrimaryWalletAddress = &input.PrimaryWalletAddress
	}
	if input.EmbeddedWalletAddress != "" {
		user.EmbeddedWalletAddress = &input.EmbeddedWalletAddress
	}

	user.ReferralCode, err = GenerateReferralCode()
	if err != nil {
		return nil, false, err
	}

	if err := s.db.Create(&user).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, false, fmt.Errorf("%w: username %q is taken", apperrors.ErrConflict, username)
		}
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	s.pushProfile(opProfileCreate, user.Username, &user)

	if _, err := s.points.Award(privyDID, ActionNewUserSignup, nil); err != nil {
		logrus.WithError(err).Warn("failed to award signup points")
	}
	s.maybeAwardProfileCompletion(&user)

	if input.ReferralCode != "" {
		if _, err := s.referrals.ProcessReferral(input.ReferralCode, privyDID); err != nil {
			logrus.WithError(err).WithField("privy_did", privyDID).
				Warn("failed to process referral at signup")
		}
	}

	logrus.WithFields(logrus.Fields{
		"privy_did": privyDID,
		"username":  user.Username,
	}).Info("user created")

	return &user, true, nil
}

// UpdateProfile applies partial updates. Username uniqueness violations are
// a conflict; the external mirror push is tolerated-failure.
func (s *ProfileService) UpdateProfile(privyDID string, input ProfileInput) (*models.User, error) {
	var user models.User
	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return nil, err
	}

	previousUsername := user.Username

	updates := map[string]interface{}{}
	if input.Username != "" && input.Username != user.Username {
		updates["username"] = input.Username
	}
	if input.Bio != "" {
		updates["bio"] = input.Bio
	}
	if input.AvatarURL != "" {
		updates["avatar_url"] = input.AvatarURL
	}
	if input.PrimaryWalletAddress != "" {
		if err := validateSolanaAddress(input.PrimaryWalletAddress); err != nil {
			return nil, err
		}
		updates["primary_wallet_address"] = input.PrimaryWalletAddress
	}
	if input.EmbeddedWalletAddress != "" {
		updates["embedded_wallet_address"] = input.EmbeddedWalletAddress
	}

	if len(updates) > 0 {
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return nil, fmt.Errorf("%w: username %q is taken", apperrors.ErrConflict, input.Username)
			}
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}

	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		return nil, err
	}

	s.pushProfile(opProfileUpdate, previousUsername, &user)
	s.maybeAwardProfileCompletion(&user)

	return &user, nil
}

// pushProfile mirrors the local profile to the external graph under the
// create-class tolerated-failure policy. Updates are keyed by keyUsername,
// the name the external graph currently knows the profile by; on a rename
// that is the pre-change username.
func (s *ProfileService) pushProfile(op socialOp, keyUsername string, user *models.User) {
	params := tapestry.ProfileParams{
		Username: user.Username,
		Bio:      user.Bio,
		Image:    user.AvatarURL,
	}
	if user.PrimaryWalletAddress != nil {
		params.WalletAddress = *user.PrimaryWalletAddress
	}

	ctx, cancel := context.WithTimeout(context.Background(), externalTimeout)
	defer cancel()

	var err error
	if op == opProfileCreate {
		_, err = s.graph.FindOrCreateProfile(ctx, params)
	} else {
		err = s.graph.UpdateProfile(ctx, keyUsername, params)
	}
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"operation": string(op),
			"username":  user.Username,
		}).Warn("external profile write failed, local store remains authoritative")
	}
}

// maybeAwardProfileCompletion pays the one-time completion bonus once the
// profile has a username, bio and avatar. The once-per-user dedup policy
// keeps repeat updates from paying again.
func (s *ProfileService) maybeAwardProfileCompletion(user *models.User) {
	if user.Username == "" || user.Bio == "" || user.AvatarURL == "" {
		return
	}
	if _, err := s.points.Award(user.PrivyDID, ActionCompleteProfile, nil); err != nil {
		logrus.WithError(err).Warn("failed to award profile completion points")
	}
}

// ProfileResult is a profile read with the sources that contributed to it.
type ProfileResult struct {
	User            *models.User      `json:"user"`
	ExternalProfile *tapestry.Profile `json:"external_profile,omitempty"`
	DataSources     []string          `json:"data_sources"`
}

// GetProfile reads the local profile and optionally enriches it with the
// external view; the external failure is tolerated and reflected in
// DataSources.
func (s *ProfileService) GetProfile(privyDID string, includeExternal bool) (*ProfileResult, error) {
	var user models.User
	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return nil, err
	}

	result := &ProfileResult{User: &user, DataSources: []string{"local"}}

	if includeExternal {
		ctx, cancel := context.WithTimeout(context.Background(), externalTimeout)
		defer cancel()

		profile, err := s.graph.FindOrCreateProfile(ctx, tapestry.ProfileParams{Username: user.Username})
		if err != nil {
			logrus.WithError(err).Warn("external profile read failed")
		} else {
			result.ExternalProfile = profile
			result.DataSources = append(result.DataSources, "tapestry")
		}
	}

	return result, nil
}

// GetSuggestedProfiles is an external-only read; degradation yields an empty
// list rather than a failure.
func (s *ProfileService) GetSuggestedProfiles(privyDID string) ([]tapestry.Profile, []string, error) {
	var user models.User
	if err := s.db.Where("privy_did = ?", privyDID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, privyDID)
		}
		return nil, nil, err
	}

	wallet := ""
	if user.PrimaryWalletAddress != nil {
		wallet = *user.PrimaryWalletAddress
	}

	ctx, cancel := context.WithTimeout(context.Background(), externalTimeout)
	defer cancel()

	profiles, err := s.graph.GetSuggestedProfiles(ctx, wallet)
	if err != nil {
		logrus.WithError(err).Warn("suggested profiles unavailable")
		return []tapestry.Profile{}, []string{}, nil
	}
	return profiles, []string{"tapestry"}, nil
}

// GetProfileByWallet resolves an external identity by wallet address.
func (s *ProfileService) GetProfileByWallet(walletAddress string) (*tapestry.Profile, error) {
	if err := validateSolanaAddress(walletAddress); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), externalTimeout)
	defer cancel()

	profile, err := s.graph.GetProfileByWallet(ctx, walletAddress)
	if errors.Is(err, tapestry.ErrProfileNotFound) {
		return nil, fmt.Errorf("%w: no profile for wallet", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve wallet profile: %w", err)
	}
	return profile, nil
}
