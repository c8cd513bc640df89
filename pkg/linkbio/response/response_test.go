package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

func serve(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestOK(t *testing.T) {
	w := serve(func(c *gin.Context) { OK(c, http.StatusCreated, gin.H{"id": 1}) })
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	var env Envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	if !env.Success || env.Error != nil || env.Data == nil {
		t.Errorf("Unexpected envelope: %+v", env)
	}
}

func TestFailMapsKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{&store.Error{Kind: store.KindNotFound, Op: "get profile"}, http.StatusNotFound, "not_found"},
		{&store.Error{Kind: store.KindInvalid, Op: "create link"}, http.StatusBadRequest, "invalid"},
		{&store.Error{Kind: store.KindConflict, Op: "create account"}, http.StatusConflict, "conflict"},
		{&store.Error{Kind: store.KindUnavailable, Op: "ping"}, http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("wrapped: %w", &store.Error{Kind: store.KindNotFound, Op: "get link"}), http.StatusNotFound, "not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		w := serve(func(c *gin.Context) { Fail(c, tt.err) })
		if w.Code != tt.status {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.status, w.Code)
		}
		var env Envelope
		json.Unmarshal(w.Body.Bytes(), &env)
		if env.Success || env.Error == nil || env.Error.Kind != tt.kind {
			t.Errorf("%v: unexpected envelope %+v", tt.err, env)
		}
	}
}

func TestFailHidesInternalMessage(t *testing.T) {
	w := serve(func(c *gin.Context) { Fail(c, errors.New("pq: password authentication failed")) })
	var env Envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	if env.Error.Message != "internal error" {
		t.Errorf("Expected internal message to be hidden, got %q", env.Error.Message)
	}
}
