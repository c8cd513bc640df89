// Package server assembles the HTTP surface from the feature handlers.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/linkbio/linkbio/pkg/linkbio/admin"
	"github.com/linkbio/linkbio/pkg/linkbio/analytics"
	"github.com/linkbio/linkbio/pkg/linkbio/auth"
	"github.com/linkbio/linkbio/pkg/linkbio/avatars"
	"github.com/linkbio/linkbio/pkg/linkbio/dashboard"
	"github.com/linkbio/linkbio/pkg/linkbio/importexport"
	"github.com/linkbio/linkbio/pkg/linkbio/middleware"
	"github.com/linkbio/linkbio/pkg/linkbio/payments"
	"github.com/linkbio/linkbio/pkg/linkbio/public"
	"github.com/linkbio/linkbio/pkg/linkbio/redirect"
	"github.com/linkbio/linkbio/pkg/linkbio/relay"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// Deps are the long-lived components the routes are wired to
type Deps struct {
	Logger         zerolog.Logger
	AllowedOrigins []string

	// PaymentCallbackSecret guards the payment status callbacks
	PaymentCallbackSecret string

	Store      *store.Store
	Relay      *relay.Relay
	Issuer     *auth.TokenIssuer
	Tracker    *analytics.Tracker
	Purger     *analytics.Purger
	Dashboards *dashboard.Manager
	Renderer   *public.Renderer
	// Avatars is nil when object storage is not configured
	Avatars *avatars.Service
}

// NewRouter builds the gin engine with every route registered
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(d.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "linkbio",
			})
		})

		// Auth routes (public)
		auth.NewHandler(d.Store, d.Issuer).WithSessions(d.Dashboards).RegisterRoutes(api.Group("/auth"))

		// Owner dashboard
		dash := api.Group("/dashboard")
		dash.Use(auth.AuthMiddleware(d.Issuer))
		dashboard.NewHandler(d.Dashboards, d.Relay).RegisterRoutes(dash)
		avatars.NewHandler(d.Avatars, d.Dashboards).RegisterRoutes(dash)
		importexport.NewHandler(d.Dashboards).RegisterRoutes(dash)

		// Tips and orders are public, status callbacks need the shared secret
		pay := payments.NewHandler(d.Store, d.PaymentCallbackSecret)
		pay.RegisterRoutes(api)
		pay.RegisterOwnerRoutes(dash)

		// Admin routes (admin role required)
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(d.Issuer), auth.RequireAdmin())
		admin.NewHandler(d.Store, d.Purger).RegisterRoutes(adminGroup)
	}

	redirect.NewHandler(d.Store, d.Tracker).RegisterRoutes(r)

	// Public pages claim /:username, so they go last
	public.NewHandler(d.Renderer).RegisterRoutes(r)

	return r
}

// New wraps the router with CORS handling
func New(d Deps) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(NewRouter(d))
}
