package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBDriver      string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN         string `envconfig:"DB_DSN" default:"linkbio.db"`
	DBAutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	JWTSecret string        `envconfig:"JWT_SECRET" default:"change-me-in-production"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	// Bootstrap administrator, created on startup when AdminEmail is set
	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"changeme"`
	AdminUsername string `envconfig:"ADMIN_USERNAME" default:"siteadmin"`

	// Shared secret the payment backend presents on status callbacks
	PaymentCallbackSecret string `envconfig:"PAYMENT_CALLBACK_SECRET"`

	BaseURL            string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Change stream settings
	ChangefeedChannel string        `envconfig:"CHANGEFEED_CHANNEL" default:"linkbio_changes"`
	ChangefeedBuffer  int           `envconfig:"CHANGEFEED_BUFFER" default:"64"`
	RelayRetryDelay   time.Duration `envconfig:"RELAY_RETRY_DELAY" default:"2s"`

	// Owner dashboard sessions are dropped after sitting idle
	DashboardIdleTTL       time.Duration `envconfig:"DASHBOARD_IDLE_TTL" default:"30m"`
	DashboardSweepInterval time.Duration `envconfig:"DASHBOARD_SWEEP_INTERVAL" default:"1m"`

	// Analytics retention
	AnalyticsRetentionDays int           `envconfig:"ANALYTICS_RETENTION_DAYS" default:"365"`
	AnalyticsPurgeInterval time.Duration `envconfig:"ANALYTICS_PURGE_INTERVAL" default:"24h"`

	// Avatar storage, optional
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3PublicURL string `envconfig:"S3_PUBLIC_URL"`
	AvatarSize  int    `envconfig:"AVATAR_SIZE" default:"400"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// S3Enabled reports whether avatar storage is configured
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// AllowedOrigins splits the comma separated origin list
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// AnalyticsRetention is the age after which analytics rows are purged
func (c *Config) AnalyticsRetention() time.Duration {
	return time.Duration(c.AnalyticsRetentionDays) * 24 * time.Hour
}
