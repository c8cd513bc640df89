package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/linkbio/linkbio/pkg/linkbio/auth"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/response"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Store is the part of the data access layer administrators use
type Store interface {
	Stats(ctx context.Context) (store.Stats, error)
	ListProfiles(ctx context.Context, limit, offset int) ([]models.Profile, int64, error)
	SetVerified(ctx context.Context, id uint, verified bool) (models.Profile, error)
	SetSystemRole(ctx context.Context, id uint, role models.SystemRole) error
}

// Purger deletes expired analytics events on demand
type Purger interface {
	PurgeOnce(ctx context.Context) (int64, error)
}

// Handler handles admin requests
type Handler struct {
	store  Store
	purger Purger
}

// NewHandler creates a new admin handler
func NewHandler(s Store, p Purger) *Handler {
	return &Handler{store: s, purger: p}
}

// ProfileList is a page of profiles
type ProfileList struct {
	Profiles []models.Profile `json:"profiles"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// VerifyRequest sets the verification badge
type VerifyRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

// RoleRequest changes a user's system role
type RoleRequest struct {
	SystemRole models.SystemRole `json:"system_role" binding:"required,oneof=admin user"`
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, string(store.KindInvalid), "Invalid id")
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}

// GetStats returns platform-wide statistics (admin only)
// @Summary Platform statistics
// @Tags admin
// @Produce json
// @Success 200 {object} store.Stats
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, stats)
}

// ListProfiles returns profiles, newest first (admin only)
// @Summary List profiles
// @Tags admin
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} ProfileList
// @Security BearerAuth
// @Router /admin/profiles [get]
func (h *Handler) ListProfiles(c *gin.Context) {
	limit := queryInt(c, "limit", defaultPageSize)
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset := queryInt(c, "offset", 0)

	profiles, total, err := h.store.ListProfiles(c.Request.Context(), limit, offset)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, ProfileList{Profiles: profiles, Total: total, Limit: limit, Offset: offset})
}

// SetVerified toggles a profile's verification badge (admin only)
// @Summary Verify profile
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Profile ID"
// @Param request body VerifyRequest true "Verification"
// @Success 200 {object} models.Profile
// @Security BearerAuth
// @Router /admin/profiles/{id}/verified [put]
func (h *Handler) SetVerified(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	profile, err := h.store.SetVerified(c.Request.Context(), id, *req.Verified)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, profile)
}

// SetRole changes a user's system role (admin only)
// @Summary Set user role
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body RoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/users/{id}/role [put]
func (h *Handler) SetRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}

	// Prevent admin from demoting themselves
	currentUserID, _ := auth.GetUserID(c)
	if id == currentUserID && req.SystemRole != models.SystemRoleAdmin {
		response.Error(c, http.StatusBadRequest, string(store.KindInvalid), "Cannot demote yourself")
		return
	}

	if err := h.store.SetSystemRole(c.Request.Context(), id, req.SystemRole); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"id": id, "system_role": req.SystemRole})
}

// PurgeAnalytics deletes analytics events past the retention window (admin only)
// @Summary Purge analytics
// @Tags admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/analytics/purge [post]
func (h *Handler) PurgeAnalytics(c *gin.Context) {
	n, err := h.purger.PurgeOnce(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"deleted": n})
}

// RegisterRoutes registers admin routes on a group that already runs the
// auth and admin middleware
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/profiles", h.ListProfiles)
	rg.PUT("/profiles/:id/verified", h.SetVerified)
	rg.PUT("/users/:id/role", h.SetRole)
	rg.POST("/analytics/purge", h.PurgeAnalytics)
}
