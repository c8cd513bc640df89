package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/database"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

func setupTestStore(t *testing.T) (*Store, *gorm.DB, *changefeed.Hub) {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	hub := changefeed.NewHub(64, zerolog.Nop())
	return New(db, hub, zerolog.Nop()), db, hub
}

func createTestAccount(t *testing.T, s *Store, username string) models.Profile {
	t.Helper()
	_, profile, err := s.CreateAccount(context.Background(), AccountInput{
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Name:         username,
		Username:     username,
	})
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return profile
}

func createTestLinks(t *testing.T, s *Store, profileID uint, titles ...string) []models.Link {
	t.Helper()
	var links []models.Link
	for _, title := range titles {
		l, err := s.CreateLink(context.Background(), profileID, LinkInput{Title: title, URL: "https://example.com/" + title})
		if err != nil {
			t.Fatalf("Failed to create link %s: %v", title, err)
		}
		links = append(links, l)
	}
	return links
}

func titles(links []models.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Title
	}
	return out
}

func assertPositionsDense(t *testing.T, links []models.Link) {
	t.Helper()
	for i, l := range links {
		if l.Position != i {
			t.Errorf("Expected %s at position %d, got %d", l.Title, i, l.Position)
		}
	}
}

func TestPing(t *testing.T) {
	s, db, _ := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()
	err := s.Ping(context.Background())
	if KindOf(err) != KindUnavailable {
		t.Errorf("Expected unavailable after close, got %v", err)
	}
}

func TestGetProfile(t *testing.T) {
	s, _, _ := setupTestStore(t)
	created := createTestAccount(t, s, "alice")

	p, err := s.GetProfile(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p.ID != created.ID || p.Plan != models.PlanFree || p.Theme != models.DefaultTheme {
		t.Errorf("Unexpected profile: %+v", p)
	}

	_, err = s.GetProfile(context.Background(), "nobody")
	if !IsNotFound(err) {
		t.Errorf("Expected not_found, got %v", err)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	s, _, _ := setupTestStore(t)

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"too short", "ab", "a@example.com"},
		{"bad chars", "al-ice", "a@example.com"},
		{"reserved", "admin", "a@example.com"},
		{"bad email", "alice", "not-an-email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.CreateAccount(context.Background(), AccountInput{
				Email: tt.email, PasswordHash: "hash", Name: "A", Username: tt.username,
			})
			if KindOf(err) != KindInvalid {
				t.Errorf("Expected invalid, got %v", err)
			}
		})
	}
}

func TestCreateAccountDuplicateUsername(t *testing.T) {
	s, db, _ := setupTestStore(t)
	createTestAccount(t, s, "alice")

	_, _, err := s.CreateAccount(context.Background(), AccountInput{
		Email: "other@example.com", PasswordHash: "hash", Name: "Other", Username: "alice",
	})
	if KindOf(err) != KindConflict {
		t.Fatalf("Expected conflict, got %v", err)
	}

	// The user insert must be rolled back with the profile
	var count int64
	db.Model(&models.User{}).Where("email = ?", "other@example.com").Count(&count)
	if count != 0 {
		t.Errorf("Expected user insert to be rolled back, found %d", count)
	}
}

func TestUpdateProfile(t *testing.T) {
	s, _, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")

	bio := "Gopher"
	updated, err := s.UpdateProfile(context.Background(), p.ID, ProfilePatch{
		Bio:         &bio,
		SocialLinks: map[string]string{"github": "https://github.com/alice"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Bio != "Gopher" || updated.DisplayName != "alice" {
		t.Errorf("Unexpected profile: %+v", updated)
	}

	bad := "not a url"
	_, err = s.UpdateProfile(context.Background(), p.ID, ProfilePatch{AvatarURL: &bad})
	if KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid for bad avatar url, got %v", err)
	}

	_, err = s.UpdateProfile(context.Background(), 999, ProfilePatch{Bio: &bio})
	if !IsNotFound(err) {
		t.Errorf("Expected not_found, got %v", err)
	}
}

func TestCreateLinkPositions(t *testing.T) {
	s, _, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	createTestLinks(t, s, p.ID, "GitHub", "Twitter", "Blog")

	links, err := s.ListLinks(context.Background(), p.ID, false)
	if err != nil {
		t.Fatalf("ListLinks failed: %v", err)
	}
	if len(links) != 3 {
		t.Fatalf("Expected 3 links, got %d", len(links))
	}
	assertPositionsDense(t, links)
	if !links[0].IsActive || links[0].Type != models.LinkTypeLink {
		t.Errorf("Expected active link defaults, got %+v", links[0])
	}
}

func TestCreateLinkInactiveStillTakesPosition(t *testing.T) {
	s, _, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	inactive := false
	s.CreateLink(context.Background(), p.ID, LinkInput{Title: "Hidden", URL: "https://example.com", IsActive: &inactive})
	l, err := s.CreateLink(context.Background(), p.ID, LinkInput{Title: "Shown", URL: "https://example.com"})
	if err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	if l.Position != 1 {
		t.Errorf("Expected position 1, got %d", l.Position)
	}
}

func TestCreateLinkErrors(t *testing.T) {
	s, _, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")

	_, err := s.CreateLink(context.Background(), p.ID, LinkInput{Title: "", URL: "https://example.com"})
	if KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid for empty title, got %v", err)
	}
	_, err = s.CreateLink(context.Background(), p.ID, LinkInput{Title: "x", URL: "nope"})
	if KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid for bad url, got %v", err)
	}
	for _, target := range []string{"javascript:alert(1)", "data:text/html,hi", "ftp://example.com/file", "//example.com"} {
		if _, err := s.CreateLink(context.Background(), p.ID, LinkInput{Title: "x", URL: target}); KindOf(err) != KindInvalid {
			t.Errorf("Expected invalid for %q, got %v", target, err)
		}
	}
	_, err = s.CreateLink(context.Background(), 999, LinkInput{Title: "x", URL: "https://example.com"})
	if !IsNotFound(err) {
		t.Errorf("Expected not_found for missing profile, got %v", err)
	}
}

func TestUpdateLink(t *testing.T) {
	s, _, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	links := createTestLinks(t, s, p.ID, "GitHub")

	inactive := false
	title := "My GitHub"
	l, err := s.UpdateLink(context.Background(), links[0].ID, LinkPatch{Title: &title, IsActive: &inactive})
	if err != nil {
		t.Fatalf("UpdateLink failed: %v", err)
	}
	if l.Title != "My GitHub" || l.IsActive {
		t.Errorf("Unexpected link: %+v", l)
	}

	active, _ := s.ListLinks(context.Background(), p.ID, true)
	if len(active) != 0 {
		t.Errorf("Expected no active links, got %d", len(active))
	}

	empty := ""
	_, err = s.UpdateLink(context.Background(), links[0].ID, LinkPatch{Title: &empty})
	if KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid for empty title, got %v", err)
	}

	script := "javascript:alert(1)"
	_, err = s.UpdateLink(context.Background(), links[0].ID, LinkPatch{URL: &script})
	if KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid for javascript url, got %v", err)
	}
}

func TestValidHTTPURL(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://github.com/alice", true},
		{"http://localhost:8080/x?y=1", true},
		{"javascript:alert(1)", false},
		{"JavaScript://example.com/%0Aalert(1)", false},
		{"mailto:alice@example.com", false},
		{"https://", false},
		{"github.com/alice", false},
	}
	for _, tt := range tests {
		if got := ValidHTTPURL(tt.raw); got != tt.want {
			t.Errorf("ValidHTTPURL(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestDeleteLinkCompactsPositions(t *testing.T) {
	s, _, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	links := createTestLinks(t, s, p.ID, "GitHub", "Twitter", "Blog")

	deleted, err := s.DeleteLink(context.Background(), links[1].ID)
	if err != nil {
		t.Fatalf("DeleteLink failed: %v", err)
	}
	if deleted.ID != links[1].ID {
		t.Errorf("Expected deleted link %d, got %d", links[1].ID, deleted.ID)
	}

	remaining, _ := s.ListLinks(context.Background(), p.ID, false)
	got := titles(remaining)
	if len(got) != 2 || got[0] != "GitHub" || got[1] != "Blog" {
		t.Fatalf("Unexpected remaining links: %v", got)
	}
	assertPositionsDense(t, remaining)

	next := createTestLinks(t, s, p.ID, "Shop")
	if next[0].Position != 2 {
		t.Errorf("Expected new link at position 2, got %d", next[0].Position)
	}

	if _, err := s.DeleteLink(context.Background(), links[1].ID); !IsNotFound(err) {
		t.Errorf("Expected not_found on second delete, got %v", err)
	}
}

func TestReorderLinks(t *testing.T) {
	s, _, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	links := createTestLinks(t, s, p.ID, "GitHub", "Twitter", "Blog")

	order := []uint{links[2].ID, links[0].ID, links[1].ID}
	if err := s.ReorderLinks(context.Background(), p.ID, order); err != nil {
		t.Fatalf("ReorderLinks failed: %v", err)
	}

	reloaded, _ := s.ListLinks(context.Background(), p.ID, false)
	for i, l := range reloaded {
		if l.ID != order[i] || l.Position != i {
			t.Errorf("Position %d: expected link %d, got %d at %d", i, order[i], l.ID, l.Position)
		}
	}
}

func TestReorderLinksRejectsNonPermutation(t *testing.T) {
	s, _, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	bob := createTestAccount(t, s, "bob")
	links := createTestLinks(t, s, p.ID, "GitHub", "Twitter")
	foreign := createTestLinks(t, s, bob.ID, "Other")

	tests := []struct {
		name string
		ids  []uint
	}{
		{"missing", []uint{links[0].ID}},
		{"duplicate", []uint{links[0].ID, links[0].ID}},
		{"foreign", []uint{links[0].ID, foreign[0].ID}},
		{"extra", []uint{links[0].ID, links[1].ID, foreign[0].ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ReorderLinks(context.Background(), p.ID, tt.ids)
			if KindOf(err) != KindInvalid {
				t.Errorf("Expected invalid, got %v", err)
			}
		})
	}

	unchanged, _ := s.ListLinks(context.Background(), p.ID, false)
	if got := titles(unchanged); got[0] != "GitHub" || got[1] != "Twitter" {
		t.Errorf("Expected order unchanged, got %v", got)
	}
	assertPositionsDense(t, unchanged)
}

func TestTrackingAndAnalytics(t *testing.T) {
	s, _, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	links := createTestLinks(t, s, p.ID, "GitHub", "Blog")
	ctx := context.Background()

	md := Metadata{Referrer: "https://twitter.com", UserAgent: "test", IPAddress: "127.0.0.1"}
	s.TrackPageView(ctx, p.ID, md)
	s.TrackPageView(ctx, p.ID, Metadata{})
	clicked, err := s.TrackLinkClick(ctx, links[0].ID, md)
	if err != nil {
		t.Fatalf("TrackLinkClick failed: %v", err)
	}
	if clicked.ClickCount != 1 {
		t.Errorf("Expected click count 1, got %d", clicked.ClickCount)
	}
	s.TrackLinkClick(ctx, links[0].ID, md)

	summary, err := s.GetAnalytics(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetAnalytics failed: %v", err)
	}
	if summary.PageViews != 2 || summary.LinkClicks != 2 {
		t.Errorf("Unexpected totals: %+v", summary)
	}
	if summary.ClicksByLink[links[0].ID] != 2 {
		t.Errorf("Expected 2 clicks on GitHub, got %d", summary.ClicksByLink[links[0].ID])
	}
	if len(summary.TopReferrers) != 1 || summary.TopReferrers[0].Count != 3 {
		t.Errorf("Unexpected referrers: %+v", summary.TopReferrers)
	}

	if _, err := s.TrackLinkClick(ctx, 999, md); !IsNotFound(err) {
		t.Errorf("Expected not_found for missing link, got %v", err)
	}
}

func TestPurgeAnalytics(t *testing.T) {
	s, db, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	ctx := context.Background()

	old := models.AnalyticsEvent{ProfileID: p.ID, Type: models.EventPageView, CreatedAt: time.Now().Add(-48 * time.Hour)}
	db.Create(&old)
	s.TrackPageView(ctx, p.ID, Metadata{})

	n, err := s.PurgeAnalytics(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeAnalytics failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 purged row, got %d", n)
	}
}

func TestCreateSubscriptionKeepsOneActive(t *testing.T) {
	s, db, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	ctx := context.Background()

	if _, err := s.GetActiveSubscription(ctx, p.ID); !IsNotFound(err) {
		t.Errorf("Expected not_found before subscribing, got %v", err)
	}

	if _, err := s.CreateSubscription(ctx, p.ID, models.PlanBasic); err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
	pro, err := s.CreateSubscription(ctx, p.ID, models.PlanPro)
	if err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
	if pro.Price != 20 || !pro.ExpiresAt.After(pro.StartsAt) {
		t.Errorf("Unexpected subscription: %+v", pro)
	}

	var active int64
	db.Model(&models.Subscription{}).Where("profile_id = ? AND is_active = ?", p.ID, true).Count(&active)
	if active != 1 {
		t.Errorf("Expected exactly one active subscription, got %d", active)
	}

	current, err := s.GetActiveSubscription(ctx, p.ID)
	if err != nil || current.ID != pro.ID {
		t.Errorf("Expected pro subscription to be current, got %+v (%v)", current, err)
	}
	profile, _ := s.GetProfileByID(ctx, p.ID)
	if profile.Plan != models.PlanPro {
		t.Errorf("Expected profile plan pro, got %s", profile.Plan)
	}

	if _, err := s.CreateSubscription(ctx, p.ID, "platinum"); KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid for unknown plan, got %v", err)
	}
}

func TestPaymentFlow(t *testing.T) {
	s, _, _ := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	ctx := context.Background()

	product, err := s.CreateProduct(ctx, p.ID, ProductInput{Name: "Sticker", Price: 2.5})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	order, err := s.CreateOrder(ctx, product.ID, OrderInput{BuyerUsername: "bob"})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.Amount != 2.5 || order.Status != models.PaymentPending || order.ProfileID != p.ID {
		t.Errorf("Unexpected order: %+v", order)
	}

	if _, err := s.AdvanceOrder(ctx, order.ID, PaymentUpdate{Status: models.PaymentApproved}); KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid without payment id, got %v", err)
	}
	if _, err := s.AdvanceOrder(ctx, order.ID, PaymentUpdate{Status: models.PaymentCompleted, TxID: "tx"}); KindOf(err) != KindConflict {
		t.Errorf("Expected conflict completing a pending order, got %v", err)
	}
	order, err = s.AdvanceOrder(ctx, order.ID, PaymentUpdate{Status: models.PaymentApproved, PaymentID: "pay_1"})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	order, err = s.AdvanceOrder(ctx, order.ID, PaymentUpdate{Status: models.PaymentCompleted, TxID: "tx_1"})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if order.PaymentID != "pay_1" || order.TxID != "tx_1" {
		t.Errorf("Unexpected payment ids: %+v", order)
	}

	inactive := false
	s.UpdateProduct(ctx, product.ID, ProductPatch{IsActive: &inactive})
	if _, err := s.CreateOrder(ctx, product.ID, OrderInput{}); KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid for inactive product, got %v", err)
	}

	tip, err := s.CreateTip(ctx, p.ID, TipInput{Amount: 1, Message: "thanks"})
	if err != nil {
		t.Fatalf("CreateTip failed: %v", err)
	}
	tip, err = s.AdvanceTip(ctx, tip.ID, PaymentUpdate{Status: models.PaymentCancelled})
	if err != nil || tip.Status != models.PaymentCancelled {
		t.Errorf("Expected cancelled tip, got %+v (%v)", tip, err)
	}
	if _, err := s.CreateTip(ctx, p.ID, TipInput{Amount: 0}); KindOf(err) != KindInvalid {
		t.Errorf("Expected invalid for zero tip, got %v", err)
	}
}

func TestWritesPublishChanges(t *testing.T) {
	s, _, hub := setupTestStore(t)
	p := createTestAccount(t, s, "alice")
	sub, _ := hub.Subscribe(changefeed.Topic{Table: changefeed.TableLinks, ProfileID: p.ID})
	ctx := context.Background()

	links := createTestLinks(t, s, p.ID, "GitHub", "Blog")
	s.DeleteLink(ctx, links[0].ID)

	want := []changefeed.Action{
		changefeed.ActionInsert,
		changefeed.ActionInsert,
		changefeed.ActionDelete,
		changefeed.ActionUpdate, // Blog shifted to position 0
	}
	for i, action := range want {
		select {
		case c := <-sub.C():
			if c.Action != action {
				t.Errorf("Change %d: expected %s, got %s", i, action, c.Action)
			}
			if action == changefeed.ActionDelete && len(c.Old) == 0 {
				t.Error("Expected delete to carry the old row")
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for change %d", i)
		}
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Error("Expected empty kind for nil")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("Expected internal for foreign error")
	}
	wrapped := classify("op", gorm.ErrRecordNotFound)
	if KindOf(wrapped) != KindNotFound {
		t.Errorf("Expected not_found, got %s", KindOf(wrapped))
	}
	if !errors.Is(wrapped, gorm.ErrRecordNotFound) {
		t.Error("Expected wrapped error to unwrap to cause")
	}
	if KindOf(classify("op", context.DeadlineExceeded)) != KindUnavailable {
		t.Error("Expected unavailable for deadline exceeded")
	}
}
