package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/linkbio/linkbio/pkg/linkbio/auth"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	*testEnv
	router  *gin.Engine
	manager *Manager
	token   string
	profile models.Profile
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := setupTestEnv(t)
	p := e.createProfile(t, "alice")

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	token, err := issuer.GenerateToken(p.UserID, p.ID, "alice@example.com", "user")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	manager := NewManager(e.store, e.relay, zerolog.Nop())
	t.Cleanup(manager.Close)

	r := gin.New()
	g := r.Group("/api/dashboard")
	g.Use(auth.AuthMiddleware(issuer))
	NewHandler(manager, e.relay).RegisterRoutes(g)

	return &testServer{testEnv: e, router: r, manager: manager, token: token, profile: p}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)

	var env envelope
	json.Unmarshal(resp.Body.Bytes(), &env)
	return resp, env
}

func TestDashboardRequiresAuth(t *testing.T) {
	s := setupTestServer(t)
	req, _ := http.NewRequest("GET", "/api/dashboard", nil)
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestGetDashboard(t *testing.T) {
	s := setupTestServer(t)
	resp, env := s.do(t, "GET", "/api/dashboard", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var snap Snapshot
	json.Unmarshal(env.Data, &snap)
	if snap.State != StateReady {
		t.Errorf("Expected ready, got %s", snap.State)
	}
	if snap.View.Profile.Username != "alice" {
		t.Errorf("Expected alice, got %s", snap.View.Profile.Username)
	}
}

func TestLinkLifecycleOverHTTP(t *testing.T) {
	s := setupTestServer(t)

	var ids []uint
	for _, title := range []string{"GitHub", "Twitter", "Blog"} {
		resp, env := s.do(t, "POST", "/api/dashboard/links", map[string]string{
			"title": title, "url": "https://example.com/" + title,
		})
		if resp.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
		}
		var link models.Link
		json.Unmarshal(env.Data, &link)
		if link.Position != len(ids) {
			t.Errorf("Expected position %d, got %d", len(ids), link.Position)
		}
		ids = append(ids, link.ID)
	}

	resp, env := s.do(t, "PUT", "/api/dashboard/links/order", ReorderRequest{IDs: []uint{ids[2], ids[1], ids[0]}})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var links []models.Link
	json.Unmarshal(env.Data, &links)
	if len(links) != 3 || links[0].ID != ids[2] {
		t.Errorf("Expected Blog first, got %+v", links)
	}

	resp, _ = s.do(t, "DELETE", fmt.Sprintf("/api/dashboard/links/%d", ids[1]), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp, _ = s.do(t, "DELETE", fmt.Sprintf("/api/dashboard/links/%d", ids[1]), nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 deleting twice, got %d", resp.Code)
	}

	stored, _ := s.store.ListLinks(context.Background(), s.profile.ID, false)
	if len(stored) != 2 {
		t.Errorf("Expected 2 links left, got %d", len(stored))
	}
}

func TestCreateLinkValidation(t *testing.T) {
	s := setupTestServer(t)
	resp, env := s.do(t, "POST", "/api/dashboard/links", map[string]string{"title": "x", "url": "nope"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
	if env.Error == nil || env.Error.Kind != "invalid" {
		t.Errorf("Expected invalid error body, got %+v", env.Error)
	}

	resp, env = s.do(t, "GET", "/api/dashboard/notifications", nil)
	var notes []Notification
	json.Unmarshal(env.Data, &notes)
	if resp.Code != http.StatusOK || len(notes) != 1 || notes[0].Level != LevelError {
		t.Errorf("Expected one error notification, got %d %+v", resp.Code, notes)
	}
}

func TestUpdateLinkBadID(t *testing.T) {
	s := setupTestServer(t)
	resp, _ := s.do(t, "PATCH", "/api/dashboard/links/abc", map[string]string{"title": "x"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestCreateSubscriptionOverHTTP(t *testing.T) {
	s := setupTestServer(t)
	resp, _ := s.do(t, "POST", "/api/dashboard/subscription", SubscriptionRequest{Plan: models.PlanPremium})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp, _ = s.do(t, "POST", "/api/dashboard/subscription", SubscriptionRequest{Plan: "platinum"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown plan, got %d", resp.Code)
	}

	_, env := s.do(t, "GET", "/api/dashboard", nil)
	var snap Snapshot
	json.Unmarshal(env.Data, &snap)
	if snap.View.Subscription == nil || snap.View.Subscription.PlanName != models.PlanPremium {
		t.Errorf("Expected premium subscription, got %+v", snap.View.Subscription)
	}
}

func TestRefreshOverHTTP(t *testing.T) {
	s := setupTestServer(t)
	resp, env := s.do(t, "POST", "/api/dashboard/refresh", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var snap Snapshot
	json.Unmarshal(env.Data, &snap)
	if snap.State != StateReady {
		t.Errorf("Expected ready, got %s", snap.State)
	}
}

func TestProductsOverHTTP(t *testing.T) {
	s := setupTestServer(t)
	resp, env := s.do(t, "POST", "/api/dashboard/products", map[string]any{"name": "Ebook", "price": 5})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var product models.Product
	json.Unmarshal(env.Data, &product)
	if !product.IsActive {
		t.Error("Expected new product to be active")
	}

	resp, env = s.do(t, "PATCH", fmt.Sprintf("/api/dashboard/products/%d", product.ID), map[string]any{"price": 7.5})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	json.Unmarshal(env.Data, &product)
	if product.Price != 7.5 {
		t.Errorf("Expected price 7.5, got %v", product.Price)
	}
}
