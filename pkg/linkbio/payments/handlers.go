// Package payments takes tips and product orders and advances them through
// the Pi payment flow: pending, approved with a payment id, completed with a
// transaction id, or cancelled.
package payments

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/linkbio/linkbio/pkg/linkbio/auth"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/response"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// Store is the part of the data access layer payments use
type Store interface {
	GetProfile(ctx context.Context, username string) (models.Profile, error)
	CreateTip(ctx context.Context, profileID uint, in store.TipInput) (models.Tip, error)
	AdvanceTip(ctx context.Context, id uint, upd store.PaymentUpdate) (models.Tip, error)
	CreateOrder(ctx context.Context, productID uint, in store.OrderInput) (models.Order, error)
	AdvanceOrder(ctx context.Context, id uint, upd store.PaymentUpdate) (models.Order, error)
	ListOrders(ctx context.Context, profileID uint) ([]models.Order, error)
}

// CallbackSecretHeader carries the shared secret on payment callbacks
const CallbackSecretHeader = "X-Callback-Secret"

// Handler handles tip and order requests
type Handler struct {
	store          Store
	callbackSecret string
}

// NewHandler creates a new payments handler. Status callbacks must present
// callbackSecret; with an empty secret they are refused.
func NewHandler(s Store, callbackSecret string) *Handler {
	return &Handler{store: s, callbackSecret: callbackSecret}
}

// RequireCallbackSecret guards the payment status callbacks
func (h *Handler) RequireCallbackSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.callbackSecret == "" {
			response.AbortError(c, http.StatusServiceUnavailable, string(store.KindUnavailable), "Payment callbacks are not configured")
			return
		}
		got := c.GetHeader(CallbackSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackSecret)) != 1 {
			response.AbortError(c, http.StatusUnauthorized, response.KindUnauthorized, "Invalid callback secret")
			return
		}
		c.Next()
	}
}

// ApproveRequest carries the Pi payment id
type ApproveRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

// CompleteRequest carries the blockchain transaction id
type CompleteRequest struct {
	TxID string `json:"txid" binding:"required"`
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, string(store.KindInvalid), "Invalid id")
		return 0, false
	}
	return uint(id), true
}

// CreateTip starts a tip to a profile
// @Summary Tip a profile
// @Tags payments
// @Accept json
// @Produce json
// @Param username path string true "Username"
// @Param request body store.TipInput true "Tip"
// @Success 201 {object} models.Tip
// @Router /profiles/{username}/tips [post]
func (h *Handler) CreateTip(c *gin.Context) {
	var in store.TipInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Invalid(c, err)
		return
	}
	profile, err := h.store.GetProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	tip, err := h.store.CreateTip(c.Request.Context(), profile.ID, in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, tip)
}

// CreateOrder starts an order for a product
// @Summary Buy a product
// @Tags payments
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param request body store.OrderInput true "Order"
// @Success 201 {object} models.Order
// @Router /products/{id}/orders [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in store.OrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Invalid(c, err)
		return
	}
	order, err := h.store.CreateOrder(c.Request.Context(), id, in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, order)
}

// advance returns a handler moving a tip or order to status. The request
// body supplies the payment id or txid the status needs.
func (h *Handler) advance(status models.PaymentStatus, apply func(ctx context.Context, id uint, upd store.PaymentUpdate) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		upd := store.PaymentUpdate{Status: status}
		switch status {
		case models.PaymentApproved:
			var req ApproveRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				response.Invalid(c, err)
				return
			}
			upd.PaymentID = req.PaymentID
		case models.PaymentCompleted:
			var req CompleteRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				response.Invalid(c, err)
				return
			}
			upd.TxID = req.TxID
		}
		out, err := apply(c.Request.Context(), id, upd)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, http.StatusOK, out)
	}
}

func (h *Handler) advanceTip(ctx context.Context, id uint, upd store.PaymentUpdate) (any, error) {
	return h.store.AdvanceTip(ctx, id, upd)
}

func (h *Handler) advanceOrder(ctx context.Context, id uint, upd store.PaymentUpdate) (any, error) {
	return h.store.AdvanceOrder(ctx, id, upd)
}

// ListOrders returns the orders placed on the signed-in owner's products
// @Summary List orders
// @Tags dashboard
// @Produce json
// @Success 200 {array} models.Order
// @Security BearerAuth
// @Router /dashboard/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	profileID, ok := auth.GetProfileID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.KindUnauthorized, "Authentication required")
		return
	}
	orders, err := h.store.ListOrders(c.Request.Context(), profileID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, orders)
}

// RegisterRoutes registers the payment routes on the api group. Tips and
// orders are public; status callbacks need the shared secret.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/profiles/:username/tips", h.CreateTip)
	rg.POST("/products/:id/orders", h.CreateOrder)

	pay := rg.Group("/payments")
	pay.Use(h.RequireCallbackSecret())
	pay.POST("/tips/:id/approve", h.advance(models.PaymentApproved, h.advanceTip))
	pay.POST("/tips/:id/complete", h.advance(models.PaymentCompleted, h.advanceTip))
	pay.POST("/tips/:id/cancel", h.advance(models.PaymentCancelled, h.advanceTip))
	pay.POST("/orders/:id/approve", h.advance(models.PaymentApproved, h.advanceOrder))
	pay.POST("/orders/:id/complete", h.advance(models.PaymentCompleted, h.advanceOrder))
	pay.POST("/orders/:id/cancel", h.advance(models.PaymentCancelled, h.advanceOrder))
}

// RegisterOwnerRoutes registers routes on a group that already runs the
// auth middleware
func (h *Handler) RegisterOwnerRoutes(rg *gin.RouterGroup) {
	rg.GET("/orders", h.ListOrders)
}
