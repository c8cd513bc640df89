package redirect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/linkbio/linkbio/pkg/linkbio/analytics"
	"github.com/linkbio/linkbio/pkg/linkbio/database"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

func setupTestStore(t *testing.T) *store.Store {
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return store.New(db, nil, zerolog.Nop())
}

func createTestLink(t *testing.T, s *store.Store, url string, active bool) models.Link {
	ctx := context.Background()
	_, p, err := s.CreateAccount(ctx, store.AccountInput{
		Email: "alice@example.com", PasswordHash: "hash", Name: "Alice", Username: "alice",
	})
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	link, err := s.CreateLink(ctx, p.ID, store.LinkInput{Title: "Test Link", URL: url, IsActive: &active})
	if err != nil {
		t.Fatalf("Failed to create test link: %v", err)
	}
	return link
}

func setupTestRouter(s *store.Store, tracker *analytics.Tracker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(s, tracker)
	handler.RegisterRoutes(r)
	return r
}

func TestRedirectActiveLink(t *testing.T) {
	s := setupTestStore(t)
	tracker := analytics.NewTracker(s, zerolog.Nop())
	router := setupTestRouter(s, tracker)
	link := createTestLink(t, s, "https://example.com", true)

	req, _ := http.NewRequest("GET", fmt.Sprintf("/go/%d", link.ID), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Errorf("Expected status 302, got %d", resp.Code)
	}
	if location := resp.Header().Get("Location"); location != "https://example.com" {
		t.Errorf("Expected Location 'https://example.com', got %s", location)
	}
}

func TestRedirectInactiveLink(t *testing.T) {
	s := setupTestStore(t)
	tracker := analytics.NewTracker(s, zerolog.Nop())
	router := setupTestRouter(s, tracker)
	link := createTestLink(t, s, "https://hidden.example.com", false)

	req, _ := http.NewRequest("GET", fmt.Sprintf("/go/%d", link.ID), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestRedirectNotFound(t *testing.T) {
	s := setupTestStore(t)
	router := setupTestRouter(s, analytics.NewTracker(s, zerolog.Nop()))

	for _, path := range []string{"/go/999", "/go/nonexistent"} {
		req, _ := http.NewRequest("GET", path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, resp.Code)
		}
	}
}

func TestRedirectIncrementsClickCount(t *testing.T) {
	s := setupTestStore(t)
	tracker := analytics.NewTracker(s, zerolog.Nop())
	router := setupTestRouter(s, tracker)
	link := createTestLink(t, s, "https://example.com", true)

	if link.ClickCount != 0 {
		t.Errorf("Expected initial click count 0, got %d", link.ClickCount)
	}

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("GET", fmt.Sprintf("/go/%d?utm=x", link.ID), nil)
		req.Header.Set("Referer", "https://twitter.com")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusFound {
			t.Errorf("Expected status 302, got %d", resp.Code)
		}
	}
	tracker.Wait()

	updated, _ := s.GetLink(context.Background(), link.ID)
	if updated.ClickCount != 2 {
		t.Errorf("Expected click count 2, got %d", updated.ClickCount)
	}
	summary, _ := s.GetAnalytics(context.Background(), link.ProfileID)
	if summary.ClicksByLink[link.ID] != 2 {
		t.Errorf("Expected 2 recorded clicks, got %d", summary.ClicksByLink[link.ID])
	}
	if len(summary.TopReferrers) != 1 || summary.TopReferrers[0].Referrer != "https://twitter.com" {
		t.Errorf("Expected twitter referrer, got %+v", summary.TopReferrers)
	}
}
