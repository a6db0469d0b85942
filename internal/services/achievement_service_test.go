package services

import (
	"testing"

	"gorm.io/gorm"

	"social-trading-backend/internal/models"
)

func newAchievementHarness(db *gorm.DB) (*PointsService, *AchievementService) {
	points := NewPointsService(db)
	achievements := NewAchievementService(db, points)
	points.AttachAchievementService(achievements)
	return points, achievements
}

func TestInitializeAchievementsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	_, service := newAchievementHarness(db)

	if err := service.InitializeAchievements(); err != nil {
		t.Fatalf("InitializeAchievements failed: %v", err)
	}

	var first int64
	db.Model(&models.Achievement{}).Count(&first)
	if first == 0 {
		t.Fatal("no achievements seeded")
	}

	// Re-running must not duplicate or disturb existing rows
	if err := service.InitializeAchievements(); err != nil {
		t.Fatalf("second InitializeAchievements failed: %v", err)
	}

	var second int64
	db.Model(&models.Achievement{}).Count(&second)
	if first != second {
		t.Errorf("re-seed changed catalog size: %d -> %d", first, second)
	}

	var codes int64
	db.Model(&models.Achievement{}).Distinct("code").Count(&codes)
	if codes != second {
		t.Errorf("duplicate codes in catalog: %d rows, %d codes", second, codes)
	}
}

func TestEvaluateUnlocksOnceWithBonus(t *testing.T) {
	db := setupTestDB(t)
	_, service := newAchievementHarness(db)
	if err := service.InitializeAchievements(); err != nil {
		t.Fatalf("InitializeAchievements failed: %v", err)
	}
	createTestUser(t, db, "did:privy:alice", "alice")

	// Push the user over the POINTS_500 threshold
	db.Model(&models.User{}).Where("privy_did = ?", "did:privy:alice").
		UpdateColumn("total_points", 600)

	if err := service.Evaluate("did:privy:alice"); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	unlocked, err := service.GetUserAchievements("did:privy:alice")
	if err != nil {
		t.Fatalf("GetUserAchievements failed: %v", err)
	}
	if len(unlocked) != 1 {
		t.Fatalf("expected 1 unlock, got %d", len(unlocked))
	}
	if unlocked[0].Achievement.Code != "POINTS_500" {
		t.Errorf("expected POINTS_500, got %s", unlocked[0].Achievement.Code)
	}

	// The unlock bonus lands on the ledger exactly once
	if total := userTotal(t, db, "did:privy:alice"); total != 650 {
		t.Errorf("expected total 650 after unlock bonus, got %d", total)
	}

	// Re-evaluation is a no-op: no second unlock, no second bonus
	if err := service.Evaluate("did:privy:alice"); err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}
	unlocked, _ = service.GetUserAchievements("did:privy:alice")
	if len(unlocked) != 1 {
		t.Errorf("re-evaluation added unlocks: %d", len(unlocked))
	}
	if total := userTotal(t, db, "did:privy:alice"); total != 650 {
		t.Errorf("re-evaluation changed total: %d", total)
	}
}

func TestAwardTriggersAchievementEvaluation(t *testing.T) {
	db := setupTestDB(t)
	points, service := newAchievementHarness(db)
	if err := service.InitializeAchievements(); err != nil {
		t.Fatalf("InitializeAchievements failed: %v", err)
	}
	createTestUser(t, db, "did:privy:alice", "alice")
	createTestUser(t, db, "did:privy:bob", "bob")

	// Alice follows bob: the edge satisfies FIRST_FOLLOW, and the follow
	// award's post-commit hook should pick it up
	if err := db.Create(&models.Follow{FollowerDID: "did:privy:alice", FollowingDID: "did:privy:bob"}).Error; err != nil {
		t.Fatalf("failed to create follow edge: %v", err)
	}

	_, err := points.Award("did:privy:alice", ActionFollowUser, models.JSONB{"following_did": "did:privy:bob"})
	if err != nil {
		t.Fatalf("Award failed: %v", err)
	}

	unlocked, err := service.GetUserAchievements("did:privy:alice")
	if err != nil {
		t.Fatalf("GetUserAchievements failed: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0].Achievement.Code != "FIRST_FOLLOW" {
		t.Fatalf("expected FIRST_FOLLOW unlock, got %+v", unlocked)
	}

	// 10 for the follow, 10 for the achievement reward
	if total := userTotal(t, db, "did:privy:alice"); total != 20 {
		t.Errorf("expected total 20, got %d", total)
	}
}

func TestGetCatalog(t *testing.T) {
	db := setupTestDB(t)
	_, service := newAchievementHarness(db)
	if err := service.InitializeAchievements(); err != nil {
		t.Fatalf("InitializeAchievements failed: %v", err)
	}

	catalog, err := service.GetCatalog()
	if err != nil {
		t.Fatalf("GetCatalog failed: %v", err)
	}
	if len(catalog) != len(achievementCatalog) {
		t.Errorf("expected %d entries, got %d", len(achievementCatalog), len(catalog))
	}
	for _, def := range catalog {
		if def.Code == "" || def.RequirementStat == "" {
			t.Errorf("incomplete catalog entry: %+v", def)
		}
	}
}
