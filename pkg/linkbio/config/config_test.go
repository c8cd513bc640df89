package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("Expected default driver sqlite, got %s", cfg.DBDriver)
	}
	if cfg.RelayRetryDelay != 2*time.Second {
		t.Errorf("Expected default retry delay 2s, got %v", cfg.RelayRetryDelay)
	}
	if cfg.S3Enabled() {
		t.Error("Expected S3 to be disabled by default")
	}
	if cfg.DashboardIdleTTL != 30*time.Minute {
		t.Errorf("Expected default idle TTL 30m, got %v", cfg.DashboardIdleTTL)
	}
	if cfg.AdminEmail != "" || cfg.AdminUsername != "siteadmin" {
		t.Errorf("Expected no bootstrap admin by default, got %q/%q", cfg.AdminEmail, cfg.AdminUsername)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("S3_BUCKET", "avatars")
	t.Setenv("S3_ACCESS_KEY", "key")
	t.Setenv("S3_SECRET_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.TokenTTL != time.Hour {
		t.Errorf("Expected token TTL 1h, got %v", cfg.TokenTTL)
	}
	origins := cfg.AllowedOrigins()
	if len(origins) != 2 || origins[1] != "https://b.example" {
		t.Errorf("Unexpected origins: %v", origins)
	}
	if !cfg.S3Enabled() {
		t.Error("Expected S3 to be enabled")
	}
}

func TestAnalyticsRetention(t *testing.T) {
	cfg := &Config{AnalyticsRetentionDays: 2}
	if cfg.AnalyticsRetention() != 48*time.Hour {
		t.Errorf("Expected 48h, got %v", cfg.AnalyticsRetention())
	}
}
