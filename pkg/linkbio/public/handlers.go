package public

import (
	"embed"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/linkbio/linkbio/pkg/linkbio/analytics"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/response"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const heartbeatInterval = 25 * time.Second

// Handler serves public profile pages
type Handler struct {
	renderer *Renderer
}

// NewHandler creates a new public page handler
func NewHandler(renderer *Renderer) *Handler {
	return &Handler{renderer: renderer}
}

type pageData struct {
	View
	Title    string
	Theme    string
	Template string
	Socials  map[string]string
}

func newPageData(v View) pageData {
	d := pageData{View: v, Theme: models.DefaultTheme, Template: models.DefaultTemplate}
	if v.Profile == nil {
		return d
	}
	d.Title = v.Profile.DisplayName
	if d.Title == "" {
		d.Title = v.Profile.Username
	}
	if v.Profile.Theme != "" {
		d.Theme = v.Profile.Theme
	}
	if v.Profile.Template != "" {
		d.Template = v.Profile.Template
	}
	d.Socials = v.Profile.SocialLinks
	return d
}

func statusFor(s State) int {
	switch s {
	case StateReady:
		return http.StatusOK
	case StateNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

func wantsJSON(c *gin.Context) bool {
	if c.Query("format") == "json" {
		return true
	}
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// Profile renders a public profile page
// @Summary Public profile
// @Description Renders the profile's active links as HTML, or JSON with ?format=json
// @Tags public
// @Produce html,json
// @Param username path string true "Username"
// @Success 200 {object} View
// @Failure 404 {object} response.Envelope "Profile not found"
// @Router /{username} [get]
func (h *Handler) Profile(c *gin.Context) {
	page := h.renderer.Mount(c.Request.Context(), c.Param("username"), analytics.MetadataFrom(c))
	defer page.Close()

	view := page.Snapshot()
	status := statusFor(view.State)

	if wantsJSON(c) {
		switch view.State {
		case StateReady:
			response.OK(c, status, view)
		case StateNotFound:
			response.Error(c, status, string(store.KindNotFound), "Profile not found")
		default:
			response.Error(c, status, string(store.KindUnavailable), "Profile could not be loaded")
		}
		return
	}
	c.Render(status, render.HTML{Template: pageTemplate, Name: "profile.html", Data: newPageData(view)})
}

// Events streams the page as server-sent events whenever it changes
// @Summary Live public profile
// @Tags public
// @Produce text/event-stream
// @Param username path string true "Username"
// @Router /{username}/events [get]
func (h *Handler) Events(c *gin.Context) {
	page := h.renderer.Watch(c.Request.Context(), c.Param("username"))
	defer page.Close()

	view := page.Snapshot()
	switch view.State {
	case StateReady:
	case StateNotFound:
		response.Error(c, http.StatusNotFound, string(store.KindNotFound), "Profile not found")
		return
	default:
		response.Error(c, http.StatusServiceUnavailable, string(store.KindUnavailable), "Profile could not be loaded")
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.SSEvent("page", view)
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-page.Updates():
			c.SSEvent("page", page.Snapshot())
			return true
		case t := <-heartbeat.C:
			c.SSEvent("ping", t.Unix())
			return true
		}
	})
}

// RegisterRoutes registers the public page routes on the root router.
// Call it after every other route so the username wildcard does not shadow them.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/profile/:username", h.Profile)
	r.GET("/:username", h.Profile)
	r.GET("/:username/events", h.Events)
}
