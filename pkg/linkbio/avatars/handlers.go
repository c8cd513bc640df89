package avatars

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkbio/linkbio/pkg/linkbio/auth"
	"github.com/linkbio/linkbio/pkg/linkbio/dashboard"
	"github.com/linkbio/linkbio/pkg/linkbio/response"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// MaxUploadSize caps avatar uploads
const MaxUploadSize = 5 << 20

// Dashboards resolves the owner's dashboard so the new avatar lands in its view
type Dashboards interface {
	Get(ctx context.Context, profileID uint) (*dashboard.Aggregator, error)
}

// Handler handles avatar uploads
type Handler struct {
	service    *Service
	dashboards Dashboards
}

// NewHandler creates a new avatar handler. A nil service means storage is
// not configured and uploads answer 503.
func NewHandler(service *Service, dashboards Dashboards) *Handler {
	return &Handler{service: service, dashboards: dashboards}
}

// Upload replaces the owner's avatar
// @Summary Upload avatar
// @Tags dashboard
// @Accept multipart/form-data
// @Produce json
// @Param avatar formData file true "Image (JPEG, PNG, GIF, BMP or TIFF)"
// @Success 200 {object} models.Profile
// @Failure 503 {object} response.Envelope "Avatar storage is not configured"
// @Security BearerAuth
// @Router /dashboard/avatar [post]
func (h *Handler) Upload(c *gin.Context) {
	if h.service == nil {
		response.Error(c, http.StatusServiceUnavailable, string(store.KindUnavailable), "Avatar storage is not configured")
		return
	}
	profileID, ok := auth.GetProfileID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.KindUnauthorized, "Authentication required")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)
	file, err := c.FormFile("avatar")
	if err != nil {
		response.Error(c, http.StatusBadRequest, string(store.KindInvalid), "avatar file is required and must be under 5MB")
		return
	}
	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, string(store.KindInvalid), "Failed to read upload")
		return
	}
	defer f.Close()

	agg, err := h.dashboards.Get(c.Request.Context(), profileID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	url, err := h.service.Upload(c.Request.Context(), profileID, f)
	if err != nil {
		response.Fail(c, err)
		return
	}
	profile, err := agg.SetAvatar(c.Request.Context(), url)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, profile)
}

// RegisterRoutes registers avatar routes on a group that already runs the
// auth middleware
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/avatar", h.Upload)
}
