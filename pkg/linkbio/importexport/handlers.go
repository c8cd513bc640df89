package importexport

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkbio/linkbio/pkg/linkbio/auth"
	"github.com/linkbio/linkbio/pkg/linkbio/dashboard"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/response"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// Dashboards resolves the owner's dashboard. Imports go through it so every
// imported link gets the next position and shows up in the live view.
type Dashboards interface {
	Get(ctx context.Context, profileID uint) (*dashboard.Aggregator, error)
}

// Handler handles import/export requests
type Handler struct {
	dashboards Dashboards
}

// NewHandler creates a new import/export handler
func NewHandler(dashboards Dashboards) *Handler {
	return &Handler{dashboards: dashboards}
}

// Bookmark is a link in Pinboard JSON format. Shared maps to is_active and
// the first tag naming a link type sets the type.
type Bookmark struct {
	Href        string `json:"href"`
	Description string `json:"description"`
	Extended    string `json:"extended"`
	Tags        string `json:"tags"`
	Time        string `json:"time"`
	Shared      string `json:"shared"`
}

// ImportRequest represents an import request
type ImportRequest struct {
	Bookmarks []Bookmark `json:"bookmarks" binding:"required"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

var linkTypes = map[string]models.LinkType{
	string(models.LinkTypeLink):    models.LinkTypeLink,
	string(models.LinkTypeTip):     models.LinkTypeTip,
	string(models.LinkTypeProduct): models.LinkTypeProduct,
	string(models.LinkTypeContact): models.LinkTypeContact,
	string(models.LinkTypeSocial):  models.LinkTypeSocial,
}

func linkInput(b Bookmark) store.LinkInput {
	active := b.Shared != "no"
	in := store.LinkInput{
		Title:       strings.TrimSpace(b.Description),
		URL:         strings.TrimSpace(b.Href),
		Description: b.Extended,
		IsActive:    &active,
	}
	if in.Title == "" {
		in.Title = in.URL
	}
	for _, tag := range strings.Fields(b.Tags) {
		if t, ok := linkTypes[strings.ToLower(tag)]; ok {
			in.Type = t
			break
		}
	}
	return in
}

func toBookmark(l models.Link) Bookmark {
	shared := "no"
	if l.IsActive {
		shared = "yes"
	}
	return Bookmark{
		Href:        l.URL,
		Description: l.Title,
		Extended:    l.Description,
		Tags:        string(l.Type),
		Time:        l.CreatedAt.Format(time.RFC3339),
		Shared:      shared,
	}
}

func (h *Handler) aggregator(c *gin.Context) (*dashboard.Aggregator, bool) {
	profileID, ok := auth.GetProfileID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.KindUnauthorized, "Authentication required")
		return nil, false
	}
	agg, err := h.dashboards.Get(c.Request.Context(), profileID)
	if err != nil {
		response.Fail(c, err)
		return nil, false
	}
	return agg, true
}

// Import appends bookmarks to the owner's links in order
// @Summary Import links
// @Tags dashboard
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Pinboard bookmarks"
// @Success 200 {object} ImportResult
// @Security BearerAuth
// @Router /dashboard/import [post]
func (h *Handler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}

	var result ImportResult
	for i, b := range req.Bookmarks {
		if _, err := agg.CreateLink(c.Request.Context(), linkInput(b)); err != nil {
			result.Errors = append(result.Errors, "bookmark "+strconv.Itoa(i)+": "+err.Error())
			result.Skipped++
			continue
		}
		result.Imported++
	}
	response.OK(c, http.StatusOK, result)
}

// Export returns the owner's links in display order
// @Summary Export links
// @Tags dashboard
// @Produce json
// @Param download query bool false "Serve as attachment"
// @Success 200 {array} Bookmark
// @Security BearerAuth
// @Router /dashboard/export [get]
func (h *Handler) Export(c *gin.Context) {
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	links := agg.Snapshot().View.Links
	bookmarks := make([]Bookmark, len(links))
	for i, l := range links {
		bookmarks[i] = toBookmark(l)
	}

	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=linkbio-export.json")
	}
	c.JSON(http.StatusOK, bookmarks)
}

// ExportSingle returns one of the owner's links
// @Summary Export a link
// @Tags dashboard
// @Produce json
// @Param id path int true "Link ID"
// @Success 200 {object} Bookmark
// @Security BearerAuth
// @Router /dashboard/export/{id} [get]
func (h *Handler) ExportSingle(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, string(store.KindInvalid), "Invalid id")
		return
	}
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	for _, l := range agg.Snapshot().View.Links {
		if l.ID == uint(id) {
			c.JSON(http.StatusOK, toBookmark(l))
			return
		}
	}
	response.Error(c, http.StatusNotFound, string(store.KindNotFound), "Link not found")
}

// RegisterRoutes registers import/export routes on a group that already
// runs the auth middleware
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
	rg.GET("/export", h.Export)
	rg.GET("/export/:id", h.ExportSingle)
}
