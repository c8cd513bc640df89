package dashboard

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkbio/linkbio/pkg/linkbio/auth"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/relay"
	"github.com/linkbio/linkbio/pkg/linkbio/response"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

const (
	eventBuffer       = 32
	heartbeatInterval = 25 * time.Second
)

// Handler serves the owner dashboard
type Handler struct {
	manager *Manager
	relay   Subscriber
}

// NewHandler creates a new dashboard handler
func NewHandler(manager *Manager, r Subscriber) *Handler {
	return &Handler{manager: manager, relay: r}
}

// ReorderRequest lists every link id in the desired order
type ReorderRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// SubscriptionRequest selects a plan
type SubscriptionRequest struct {
	Plan models.Plan `json:"plan" binding:"required"`
}

// aggregator resolves the signed-in owner's aggregator, writing the error
// response itself when it cannot
func (h *Handler) aggregator(c *gin.Context) (*Aggregator, bool) {
	profileID, ok := auth.GetProfileID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.KindUnauthorized, "Authentication required")
		return nil, false
	}
	agg, err := h.manager.Get(c.Request.Context(), profileID)
	if err != nil {
		response.Fail(c, err)
		return nil, false
	}
	return agg, true
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, string(store.KindInvalid), "Invalid id")
		return 0, false
	}
	return uint(id), true
}

// Get returns the dashboard view
// @Summary Get dashboard
// @Description Profile, links, analytics, subscription, products and tips of the signed-in owner
// @Tags dashboard
// @Produce json
// @Success 200 {object} Snapshot
// @Failure 503 {object} response.Envelope "Store unavailable, retry with refresh"
// @Security BearerAuth
// @Router /dashboard [get]
func (h *Handler) Get(c *gin.Context) {
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	snap := agg.Snapshot()
	if snap.State == StateError {
		response.Error(c, http.StatusServiceUnavailable, string(store.KindUnavailable), snap.Error)
		return
	}
	response.OK(c, http.StatusOK, snap)
}

// Refresh reloads the dashboard view
// @Summary Refresh dashboard
// @Tags dashboard
// @Produce json
// @Success 200 {object} Snapshot
// @Security BearerAuth
// @Router /dashboard/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	profileID, ok := auth.GetProfileID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.KindUnauthorized, "Authentication required")
		return
	}
	agg := h.manager.Aggregator(profileID)
	if err := agg.Refresh(c.Request.Context()); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, agg.Snapshot())
}

// UpdateProfile patches the owner's profile
// @Summary Update profile
// @Tags dashboard
// @Accept json
// @Produce json
// @Param request body store.ProfilePatch true "Fields to change"
// @Success 200 {object} models.Profile
// @Security BearerAuth
// @Router /dashboard/profile [patch]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var patch store.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Invalid(c, err)
		return
	}
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	p, err := agg.UpdateProfile(c.Request.Context(), patch)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, p)
}

// CreateLink adds a link
// @Summary Create link
// @Tags dashboard
// @Accept json
// @Produce json
// @Param request body store.LinkInput true "Link"
// @Success 201 {object} models.Link
// @Security BearerAuth
// @Router /dashboard/links [post]
func (h *Handler) CreateLink(c *gin.Context) {
	var in store.LinkInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Invalid(c, err)
		return
	}
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	link, err := agg.CreateLink(c.Request.Context(), in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, link)
}

// UpdateLink patches a link
// @Summary Update link
// @Tags dashboard
// @Accept json
// @Produce json
// @Param id path int true "Link ID"
// @Param request body store.LinkPatch true "Fields to change"
// @Success 200 {object} models.Link
// @Security BearerAuth
// @Router /dashboard/links/{id} [patch]
func (h *Handler) UpdateLink(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var patch store.LinkPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Invalid(c, err)
		return
	}
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	link, err := agg.UpdateLink(c.Request.Context(), id, patch)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, link)
}

// DeleteLink removes a link
// @Summary Delete link
// @Tags dashboard
// @Param id path int true "Link ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/links/{id} [delete]
func (h *Handler) DeleteLink(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	if err := agg.DeleteLink(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"message": "Link deleted"})
}

// ReorderLinks stores a new link order
// @Summary Reorder links
// @Tags dashboard
// @Accept json
// @Produce json
// @Param request body ReorderRequest true "Every link id in display order"
// @Success 200 {array} models.Link
// @Security BearerAuth
// @Router /dashboard/links/order [put]
func (h *Handler) ReorderLinks(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	if err := agg.ReorderLinks(c.Request.Context(), req.IDs); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, agg.Snapshot().View.Links)
}

// CreateSubscription switches plan
// @Summary Subscribe
// @Tags dashboard
// @Accept json
// @Produce json
// @Param request body SubscriptionRequest true "Plan"
// @Success 201 {object} models.Subscription
// @Security BearerAuth
// @Router /dashboard/subscription [post]
func (h *Handler) CreateSubscription(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	sub, err := agg.CreateSubscription(c.Request.Context(), req.Plan)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, sub)
}

// CreateProduct adds a product
// @Summary Create product
// @Tags dashboard
// @Accept json
// @Produce json
// @Param request body store.ProductInput true "Product"
// @Success 201 {object} models.Product
// @Security BearerAuth
// @Router /dashboard/products [post]
func (h *Handler) CreateProduct(c *gin.Context) {
	var in store.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Invalid(c, err)
		return
	}
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	product, err := agg.CreateProduct(c.Request.Context(), in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, product)
}

// UpdateProduct patches a product
// @Summary Update product
// @Tags dashboard
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param request body store.ProductPatch true "Fields to change"
// @Success 200 {object} models.Product
// @Security BearerAuth
// @Router /dashboard/products/{id} [patch]
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var patch store.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Invalid(c, err)
		return
	}
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	product, err := agg.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, product)
}

// Notifications lists recent mutation outcomes
// @Summary Notifications
// @Tags dashboard
// @Produce json
// @Success 200 {array} Notification
// @Security BearerAuth
// @Router /dashboard/notifications [get]
func (h *Handler) Notifications(c *gin.Context) {
	profileID, ok := auth.GetProfileID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.KindUnauthorized, "Authentication required")
		return
	}
	response.OK(c, http.StatusOK, h.manager.Inbox(profileID).Recent())
}

// Events streams the owner's relay events as server-sent events
// @Summary Live dashboard events
// @Tags dashboard
// @Produce text/event-stream
// @Security BearerAuth
// @Router /dashboard/events [get]
func (h *Handler) Events(c *gin.Context) {
	profileID, ok := auth.GetProfileID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.KindUnauthorized, "Authentication required")
		return
	}

	events := make(chan relay.Event, eventBuffer)
	handle, err := h.relay.Subscribe(profileID, watchedKinds, func(ev relay.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	if err != nil {
		response.Fail(c, &store.Error{Kind: store.KindUnavailable, Op: "subscribe", Err: err})
		return
	}
	defer handle.Unsubscribe()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			c.SSEvent(string(ev.Kind()), ev)
			return true
		case t := <-heartbeat.C:
			c.SSEvent("ping", t.Unix())
			return true
		}
	})
}

// RegisterRoutes registers dashboard routes on a group that already runs
// the auth middleware
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.POST("/refresh", h.Refresh)
	rg.PATCH("/profile", h.UpdateProfile)
	rg.POST("/links", h.CreateLink)
	rg.PUT("/links/order", h.ReorderLinks)
	rg.PATCH("/links/:id", h.UpdateLink)
	rg.DELETE("/links/:id", h.DeleteLink)
	rg.POST("/subscription", h.CreateSubscription)
	rg.POST("/products", h.CreateProduct)
	rg.PATCH("/products/:id", h.UpdateProduct)
	rg.GET("/notifications", h.Notifications)
	rg.GET("/events", h.Events)
}
