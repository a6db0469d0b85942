package services

import (
	"errors"
	"strings"
	"testing"

	"social-trading-backend/internal/apperrors"
	"social-trading-backend/internal/models"
)

func TestGenerateReferralCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateReferralCode()
		if err != nil {
			t.Fatalf("GenerateReferralCode failed: %v", err)
		}
		if len(code) == 0 || len(code) > 6 {
			t.Errorf("unexpected code length: %q", code)
		}
		if code != strings.ToUpper(code) {
			t.Errorf("code not uppercase: %q", code)
		}
		seen[code] = true
	}
	// Codes are random; 50 draws should not all collapse to a handful
	if len(seen) < 25 {
		t.Errorf("suspiciously few distinct codes: %d", len(seen))
	}
}

func TestCheckReferralCode(t *testing.T) {
	db := setupTestDB(t)
	service := NewReferralService(db, NewPointsService(db))
	createTestUser(t, db, "did:privy:referrer", "referrer")

	// Lookup is case-insensitive on the stored uppercase code
	result, err := service.CheckReferralCode("creferrer")
	if err != nil {
		t.Fatalf("CheckReferralCode failed: %v", err)
	}
	if !result.Valid {
		t.Fatal("expected valid code")
	}
	if result.ReferrerDID != "did:privy:referrer" || result.ReferrerUsername != "referrer" {
		t.Errorf("unexpected referrer: %+v", result)
	}

	result, err = service.CheckReferralCode("NOPE99")
	if err != nil {
		t.Fatalf("CheckReferralCode failed: %v", err)
	}
	if result.Valid {
		t.Error("expected invalid code")
	}

	if _, err := service.CheckReferralCode(""); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty code, got %v", err)
	}
}

func TestProcessReferral(t *testing.T) {
	db := setupTestDB(t)
	service := NewReferralService(db, NewPointsService(db))
	createTestUser(t, db, "did:privy:referrer", "referrer")
	createTestUser(t, db, "did:privy:newbie", "newbie")

	applied, err := service.ProcessReferral("CREFERRER", "did:privy:newbie")
	if err != nil {
		t.Fatalf("ProcessReferral failed: %v", err)
	}
	if !applied {
		t.Fatal("expected referral to apply")
	}

	var newbie models.User
	db.Where("privy_did = ?", "did:privy:newbie").First(&newbie)
	if newbie.ReferredBy == nil || *newbie.ReferredBy != "did:privy:referrer" {
		t.Errorf("referred_by not set: %+v", newbie.ReferredBy)
	}

	// Referrer credited once, atomically with the referred_by write
	if total := userTotal(t, db, "did:privy:referrer"); total != 50 {
		t.Errorf("expected referrer total 50, got %d", total)
	}

	// Reprocessing the same user fails closed with no extra credit
	applied, err = service.ProcessReferral("CREFERRER", "did:privy:newbie")
	if err != nil {
		t.Fatalf("repeat ProcessReferral failed: %v", err)
	}
	if applied {
		t.Error("expected repeat referral to be a no-op")
	}
	if total := userTotal(t, db, "did:privy:referrer"); total != 50 {
		t.Errorf("repeat processing changed referrer total: %d", total)
	}
}

func TestProcessReferralFailsClosed(t *testing.T) {
	db := setupTestDB(t)
	service := NewReferralService(db, NewPointsService(db))
	createTestUser(t, db, "did:privy:referrer", "referrer")

	// Self-referral
	applied, err := service.ProcessReferral("CREFERRER", "did:privy:referrer")
	if err != nil {
		t.Fatalf("ProcessReferral failed: %v", err)
	}
	if applied {
		t.Error("self-referral applied")
	}

	// Unknown code
	createTestUser(t, db, "did:privy:newbie", "newbie")
	applied, err = service.ProcessReferral("ZZZZZZ", "did:privy:newbie")
	if err != nil {
		t.Fatalf("ProcessReferral failed: %v", err)
	}
	if applied {
		t.Error("unknown code applied")
	}

	// Unknown referred user is an error, not a silent no-op
	if _, err := service.ProcessReferral("CREFERRER", "did:privy:ghost"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if total := userTotal(t, db, "did:privy:referrer"); total != 0 {
		t.Errorf("failed referrals credited points: %d", total)
	}
}

func TestGetUserReferrals(t *testing.T) {
	db := setupTestDB(t)
	service := NewReferralService(db, NewPointsService(db))
	createTestUser(t, db, "did:privy:referrer", "referrer")
	createTestUser(t, db, "did:privy:one", "one")
	createTestUser(t, db, "did:privy:two", "two")

	for _, did := range []string{"did:privy:one", "did:privy:two"} {
		if applied, err := service.ProcessReferral("CREFERRER", did); err != nil || !applied {
			t.Fatalf("ProcessReferral(%s) = %v, %v", did, applied, err)
		}
	}

	referred, err := service.GetUserReferrals("did:privy:referrer")
	if err != nil {
		t.Fatalf("GetUserReferrals failed: %v", err)
	}
	if len(referred) != 2 {
		t.Fatalf("expected 2 referrals, got %d", len(referred))
	}
	if referred[0].Username != "one" || referred[1].Username != "two" {
		t.Errorf("unexpected referral order: %+v", referred)
	}
}
