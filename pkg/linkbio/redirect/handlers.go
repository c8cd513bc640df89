package redirect

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/linkbio/linkbio/pkg/linkbio/analytics"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/response"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// Links looks up link targets
type Links interface {
	GetLink(ctx context.Context, id uint) (models.Link, error)
}

// Clicks records link clicks without blocking
type Clicks interface {
	LinkClick(ctx context.Context, linkID uint, md store.Metadata)
}

// Handler handles link redirects
type Handler struct {
	links  Links
	clicks Clicks
}

// NewHandler creates a new redirect handler
func NewHandler(links Links, clicks Clicks) *Handler {
	return &Handler{links: links, clicks: clicks}
}

// Redirect sends the visitor to a link's target and records the click.
// Inactive links are hidden from the public page, so they do not redirect either.
// @Summary Follow a link
// @Tags public
// @Param id path int true "Link ID"
// @Success 302
// @Failure 404 {object} response.Envelope "Link not found"
// @Router /go/{id} [get]
func (h *Handler) Redirect(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusNotFound, string(store.KindNotFound), "Link not found")
		return
	}

	link, err := h.links.GetLink(c.Request.Context(), uint(id))
	if err != nil {
		if store.IsNotFound(err) {
			response.Error(c, http.StatusNotFound, string(store.KindNotFound), "Link not found")
			return
		}
		response.Fail(c, err)
		return
	}
	if !link.IsActive {
		response.Error(c, http.StatusNotFound, string(store.KindNotFound), "Link not found")
		return
	}

	// Fire and forget: the redirect never waits on tracking
	h.clicks.LinkClick(c.Request.Context(), link.ID, analytics.MetadataFrom(c))

	c.Redirect(http.StatusFound, link.URL)
}

// RegisterRoutes registers redirect routes on the root router
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/go/:id", h.Redirect)
}
