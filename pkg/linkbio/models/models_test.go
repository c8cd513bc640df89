package models

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestAutoMigrate(t *testing.T) {
	db := setupTestDB(t)

	err := AutoMigrate(db)
	if err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	// Verify tables exist by checking if we can query them
	tables := []string{"users", "profiles", "links", "analytics_events", "subscriptions", "products", "tips", "orders"}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			t.Errorf("Expected table %s to exist", table)
		}
	}
}

func TestUsernameUniqueness(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user1 := User{Email: "a@example.com", Name: "A"}
	user2 := User{Email: "b@example.com", Name: "B"}
	db.Create(&user1)
	db.Create(&user2)

	if err := db.Create(&Profile{UserID: user1.ID, Username: "alice"}).Error; err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}
	if err := db.Create(&Profile{UserID: user2.ID, Username: "alice"}).Error; err == nil {
		t.Error("Expected error when creating profile with duplicate username")
	}
}

func TestProfileSocialLinksRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{Email: "a@example.com", Name: "A"}
	db.Create(&user)
	profile := Profile{
		UserID:      user.ID,
		Username:    "alice",
		SocialLinks: map[string]string{"github": "https://github.com/alice"},
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	var loaded Profile
	db.First(&loaded, profile.ID)
	if loaded.SocialLinks["github"] != "https://github.com/alice" {
		t.Errorf("Expected github social link, got %v", loaded.SocialLinks)
	}
}

func TestLinkSoftDelete(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	link := Link{ProfileID: 1, Title: "GitHub", URL: "https://github.com", IsActive: true}
	db.Create(&link)
	db.Delete(&link)

	var count int64
	db.Model(&Link{}).Where("profile_id = ?", 1).Count(&count)
	if count != 0 {
		t.Errorf("Expected soft-deleted link to be hidden, got count %d", count)
	}

	db.Unscoped().Model(&Link{}).Where("profile_id = ?", 1).Count(&count)
	if count != 1 {
		t.Errorf("Expected soft-deleted row to remain, got count %d", count)
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentApproved, true},
		{PaymentPending, PaymentCancelled, true},
		{PaymentPending, PaymentCompleted, false},
		{PaymentApproved, PaymentCompleted, true},
		{PaymentApproved, PaymentCancelled, true},
		{PaymentApproved, PaymentPending, false},
		{PaymentCompleted, PaymentCancelled, false},
		{PaymentCancelled, PaymentApproved, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestSubscriptionCurrent(t *testing.T) {
	now := time.Now()
	sub := Subscription{IsActive: true, StartsAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)}
	if !sub.Current(now) {
		t.Error("Expected subscription inside its window to be current")
	}
	sub.ExpiresAt = now.Add(-time.Minute)
	if sub.Current(now) {
		t.Error("Expected expired subscription not to be current")
	}
	sub.ExpiresAt = now.Add(time.Hour)
	sub.IsActive = false
	if sub.Current(now) {
		t.Error("Expected inactive subscription not to be current")
	}
}

func TestPlanValid(t *testing.T) {
	if !PlanPro.Valid() {
		t.Error("Expected pro plan to be valid")
	}
	if Plan("platinum").Valid() {
		t.Error("Expected unknown plan to be invalid")
	}
}

func TestAnalyticsSummaryRecord(t *testing.T) {
	var s AnalyticsSummary
	linkID := uint(4)
	s.Record(AnalyticsEvent{Type: EventPageView})
	s.Record(AnalyticsEvent{Type: EventLinkClick, LinkID: &linkID})
	s.Record(AnalyticsEvent{Type: EventLinkClick, LinkID: &linkID})

	if s.PageViews != 1 || s.LinkClicks != 2 {
		t.Errorf("Unexpected counts: %+v", s)
	}
	if s.ClicksByLink[4] != 2 {
		t.Errorf("Expected 2 clicks for link 4, got %d", s.ClicksByLink[4])
	}

	c := s.Clone()
	c.ClicksByLink[4] = 10
	if s.ClicksByLink[4] != 2 {
		t.Error("Expected Clone to copy the per-link map")
	}
}
