package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/linkbio/linkbio/pkg/linkbio/analytics"
	"github.com/linkbio/linkbio/pkg/linkbio/auth"
	"github.com/linkbio/linkbio/pkg/linkbio/avatars"
	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/config"
	"github.com/linkbio/linkbio/pkg/linkbio/dashboard"
	"github.com/linkbio/linkbio/pkg/linkbio/database"
	"github.com/linkbio/linkbio/pkg/linkbio/logger"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/public"
	"github.com/linkbio/linkbio/pkg/linkbio/relay"
	"github.com/linkbio/linkbio/pkg/linkbio/server"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// @title Linkbio API
// @version 1.0
// @description Link-in-bio pages with a live owner dashboard and Pi tips.

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	// Load .env before reading config
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Error loading config")
	}
	log := logger.New(cfg.Environment)
	if envErr != nil {
		log.Debug().Msg("no .env file found")
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if cfg.DBAutoMigrate {
		if err := models.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		log.Info().Msg("Database migrations completed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Change stream: in-process for sqlite, LISTEN/NOTIFY across instances for postgres
	hub := changefeed.NewHub(cfg.ChangefeedBuffer, log)
	var pub changefeed.Publisher = hub
	if cfg.DBDriver == database.DriverPostgres {
		pub = changefeed.NewPGPublisher(db, cfg.ChangefeedChannel)
		listener := changefeed.NewListener(cfg.DBDSN, cfg.ChangefeedChannel, hub, cfg.RelayRetryDelay, log)
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Error().Err(err).Msg("change listener stopped")
			}
		}()
	}

	rel := relay.New(hub, cfg.RelayRetryDelay, log)
	st := store.New(db, pub, log)

	if err := ensureAdminExists(ctx, st, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure admin user exists")
	}

	tracker := analytics.NewTracker(st, log)
	purger := analytics.NewPurger(st, cfg.AnalyticsRetention(), cfg.AnalyticsPurgeInterval, log)
	go purger.Run(ctx)

	manager := dashboard.NewManager(st, rel, log)
	go manager.Run(ctx, cfg.DashboardSweepInterval, cfg.DashboardIdleTTL)

	var avatarService *avatars.Service
	if cfg.S3Enabled() {
		client, err := avatars.NewS3Client(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		publicURL := cfg.S3PublicURL
		if publicURL == "" {
			publicURL = strings.TrimSuffix(cfg.S3URL, "/") + "/" + cfg.S3Bucket
		}
		avatarService = avatars.NewService(client, cfg.S3Bucket, publicURL, cfg.AvatarSize, log)
	} else {
		log.Info().Msg("No object storage configured - avatar uploads disabled")
	}

	handler := server.New(server.Deps{
		Logger:                log,
		AllowedOrigins:        cfg.AllowedOrigins(),
		PaymentCallbackSecret: cfg.PaymentCallbackSecret,
		Store:                 st,
		Relay:                 rel,
		Issuer:                auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Tracker:               tracker,
		Purger:                purger,
		Dashboards:            manager,
		Renderer:              public.NewRenderer(st, rel, tracker, log),
		Avatars:               avatarService,
	})

	// No write timeout: the dashboard and public pages hold SSE streams open.
	// Request contexts are cancelled once shutdown starts so those streams return.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	go func() {
		log.Info().Msgf("Starting linkbio server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	tracker.Wait()
	manager.Close()
	rel.Close()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info().Msg("Server shut down gracefully")
}

// ensureAdminExists creates the configured administrator account on first
// start and makes sure it keeps the admin role.
func ensureAdminExists(ctx context.Context, st *store.Store, cfg *config.Config) error {
	if cfg.AdminEmail == "" {
		return nil
	}

	user, err := st.GetUserByEmail(ctx, cfg.AdminEmail)
	if store.IsNotFound(err) {
		hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			return err
		}
		user, _, err = st.CreateAccount(ctx, store.AccountInput{
			Email:        cfg.AdminEmail,
			PasswordHash: hashedPassword,
			Name:         "Admin",
			Username:     cfg.AdminUsername,
		})
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if user.SystemRole == models.SystemRoleAdmin {
		return nil
	}
	return st.SetSystemRole(ctx, user.ID, models.SystemRoleAdmin)
}
