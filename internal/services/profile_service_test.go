package services

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"social-trading-backend/internal/apperrors"
	"social-trading-backend/internal/models"
	"social-trading-backend/internal/tapestry"
)

// Wrapped SOL mint, a well-formed base58 public key.
const validWallet = "So11111111111111111111111111111111111111112"

func newProfileHarness(t *testing.T) (*ProfileService, *PointsService, *gorm.DB) {
	db := setupTestDB(t)
	points := NewPointsService(db)
	referrals := NewReferralService(db, points)
	service := NewProfileService(db, &fakeGraph{}, points, referrals)
	return service, points, db
}

func TestFindOrCreateProfileCreates(t *testing.T) {
	service, points, db := newProfileHarness(t)

	user, created, err := service.FindOrCreateProfile("did:privy:alice", ProfileInput{
		Username:             "alice",
		Bio:                  "trader",
		AvatarURL:            "https://cdn.example/alice.png",
		PrimaryWalletAddress: validWallet,
	})
	if err != nil {
		t.Fatalf("FindOrCreateProfile failed: %v", err)
	}
	if !created {
		t.Fatal("expected created = true")
	}
	if user.Username != "alice" {
		t.Errorf("unexpected username %q", user.Username)
	}
	if user.ReferralCode == "" {
		t.Error("referral code not generated")
	}
	if user.PrimaryWalletAddress == nil || *user.PrimaryWalletAddress != validWallet {
		t.Errorf("wallet not stored: %v", user.PrimaryWalletAddress)
	}

	// Signup bonus plus profile completion (username, bio and avatar all set)
	summary, err := points.GetSummary("did:privy:alice")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if summary.TotalPoints != 45 {
		t.Errorf("expected 45 signup+completion points, got %d", summary.TotalPoints)
	}

	// Second call returns the existing row untouched
	again, created, err := service.FindOrCreateProfile("did:privy:alice", ProfileInput{Username: "other"})
	if err != nil {
		t.Fatalf("second FindOrCreateProfile failed: %v", err)
	}
	if created {
		t.Error("existing profile reported as created")
	}
	if again.Username != "alice" {
		t.Errorf("existing profile mutated: %q", again.Username)
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 user, got %d", count)
	}
}

func TestFindOrCreateProfileGeneratesUsername(t *testing.T) {
	service, points, _ := newProfileHarness(t)

	user, created, err := service.FindOrCreateProfile("did:privy:anon", ProfileInput{})
	if err != nil {
		t.Fatalf("FindOrCreateProfile failed: %v", err)
	}
	if !created || user.Username == "" {
		t.Fatalf("expected generated username, got %q", user.Username)
	}

	// Bare profile: signup bonus only, no completion bonus
	summary, _ := points.GetSummary("did:privy:anon")
	if summary.TotalPoints != 20 {
		t.Errorf("expected 20 signup points, got %d", summary.TotalPoints)
	}
}

func TestFindOrCreateProfileWithReferral(t *testing.T) {
	service, points, db := newProfileHarness(t)
	createTestUser(t, db, "did:privy:referrer", "referrer")

	_, created, err := service.FindOrCreateProfile("did:privy:invited", ProfileInput{
		Username:     "invited",
		ReferralCode: "CREFERRER",
	})
	if err != nil {
		t.Fatalf("FindOrCreateProfile failed: %v", err)
	}
	if !created {
		t.Fatal("expected creation")
	}

	var invited models.User
	db.Where("privy_did = ?", "did:privy:invited").First(&invited)
	if invited.ReferredBy == nil || *invited.ReferredBy != "did:privy:referrer" {
		t.Errorf("referral not applied: %v", invited.ReferredBy)
	}

	summary, _ := points.GetSummary("did:privy:referrer")
	if summary.TotalPoints != 50 {
		t.Errorf("expected referrer bonus 50, got %d", summary.TotalPoints)
	}
}

func TestFindOrCreateProfileValidation(t *testing.T) {
	service, _, _ := newProfileHarness(t)

	if _, _, err := service.FindOrCreateProfile("", ProfileInput{}); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty DID, got %v", err)
	}

	_, _, err := service.FindOrCreateProfile("did:privy:badwallet", ProfileInput{
		Username:             "badwallet",
		PrimaryWalletAddress: "not-a-solana-address",
	})
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad wallet, got %v", err)
	}

	// Username collision across DIDs is a conflict
	if _, _, err := service.FindOrCreateProfile("did:privy:first", ProfileInput{Username: "taken"}); err != nil {
		t.Fatalf("FindOrCreateProfile failed: %v", err)
	}
	_, _, err = service.FindOrCreateProfile("did:privy:second", ProfileInput{Username: "taken"})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict for taken username, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	service, points, _ := newProfileHarness(t)

	if _, _, err := service.FindOrCreateProfile("did:privy:alice", ProfileInput{Username: "alice"}); err != nil {
		t.Fatalf("FindOrCreateProfile failed: %v", err)
	}

	user, err := service.UpdateProfile("did:privy:alice", ProfileInput{
		Bio:       "now with a bio",
		AvatarURL: "https://cdn.example/alice.png",
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if user.Bio != "now with a bio" {
		t.Errorf("bio not updated: %q", user.Bio)
	}

	// Completing the profile through updates pays the bonus exactly once
	summary, _ := points.GetSummary("did:privy:alice")
	if summary.TotalPoints != 45 {
		t.Errorf("expected 45 points after completion, got %d", summary.TotalPoints)
	}
	if _, err := service.UpdateProfile("did:privy:alice", ProfileInput{Bio: "edited again"}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	summary, _ = points.GetSummary("did:privy:alice")
	if summary.TotalPoints != 45 {
		t.Errorf("completion bonus paid twice: %d", summary.TotalPoints)
	}

	if _, err := service.UpdateProfile("did:privy:ghost", ProfileInput{Bio: "x"}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProfileUsernameConflict(t *testing.T) {
	service, _, _ := newProfileHarness(t)

	if _, _, err := service.FindOrCreateProfile("did:privy:alice", ProfileInput{Username: "alice"}); err != nil {
		t.Fatalf("FindOrCreateProfile failed: %v", err)
	}
	if _, _, err := service.FindOrCreateProfile("did:privy:bob", ProfileInput{Username: "bob"}); err != nil {
		t.Fatalf("FindOrCreateProfile failed: %v", err)
	}

	if _, err := service.UpdateProfile("did:privy:bob", ProfileInput{Username: "alice"}); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetProfile(t *testing.T) {
	service, _, _ := newProfileHarness(t)

	if _, _, err := service.FindOrCreateProfile("did:privy:alice", ProfileInput{Username: "alice"}); err != nil {
		t.Fatalf("FindOrCreateProfile failed: %v", err)
	}

	result, err := service.GetProfile("did:privy:alice", false)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if result.User.Username != "alice" {
		t.Errorf("unexpected user: %+v", result.User)
	}
	if len(result.DataSources) != 1 || result.DataSources[0] != "local" {
		t.Errorf("unexpected sources: %v", result.DataSources)
	}

	result, err = service.GetProfile("did:privy:alice", true)
	if err != nil {
		t.Fatalf("GetProfile with external failed: %v", err)
	}
	if result.ExternalProfile == nil {
		t.Error("external profile missing")
	}
	if len(result.DataSources) != 2 {
		t.Errorf("expected both sources, got %v", result.DataSources)
	}

	if _, err := service.GetProfile("did:privy:ghost", false); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProfileRenameKeysExternalPushByOldUsername(t *testing.T) {
	db := setupTestDB(t)
	points := NewPointsService(db)
	graph := &fakeGraph{}
	service := NewProfileService(db, graph, points, NewReferralService(db, points))

	if _, _, err := service.FindOrCreateProfile("did:privy:alice", ProfileInput{Username: "alice"}); err != nil {
		t.Fatalf("FindOrCreateProfile failed: %v", err)
	}

	user, err := service.UpdateProfile("did:privy:alice", ProfileInput{Username: "alice_renamed"})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if user.Username != "alice_renamed" {
		t.Errorf("username not updated: %q", user.Username)
	}

	// The external graph still knows the profile as "alice": the mirror push
	// must be keyed by the old name while carrying the new one.
	if len(graph.updateKeys) != 1 || graph.updateKeys[0] != "alice" {
		t.Fatalf("expected external update keyed by old username, got %v", graph.updateKeys)
	}
	if graph.updateParams[0].Username != "alice_renamed" {
		t.Errorf("expected new username in pushed params, got %q", graph.updateParams[0].Username)
	}
}

func TestGetProfileByWallet(t *testing.T) {
	service, _, _ := newProfileHarness(t)

	profile, err := service.GetProfileByWallet(validWallet)
	if err != nil {
		t.Fatalf("GetProfileByWallet failed: %v", err)
	}
	if profile.WalletAddress != validWallet {
		t.Errorf("unexpected profile: %+v", profile)
	}

	if _, err := service.GetProfileByWallet("junk"); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestGetProfileByWalletDistinguishesOutageFromMissing(t *testing.T) {
	db := setupTestDB(t)
	points := NewPointsService(db)
	graph := &fakeGraph{walletLookupErr: errGraphDown}
	service := NewProfileService(db, graph, points, NewReferralService(db, points))

	// A transport failure is not a missing profile
	_, err := service.GetProfileByWallet(validWallet)
	if err == nil {
		t.Fatal("expected error during outage")
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("outage reported as not-found: %v", err)
	}

	graph.walletLookupErr = tapestry.ErrProfileNotFound
	if _, err := service.GetProfileByWallet(validWallet); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty lookup, got %v", err)
	}
}
