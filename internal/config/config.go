package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Redis, used only for the scheduler lock
	RedisURL string

	// OpenTimestamps anchoring
	OTSCalendarURLs []string
	OTSTimeout      time.Duration
	AnchorSchedule  string
	AnchorBatchSize int

	// Monitor
	MonitorSchedule string
	CronSecret      string

	// Payment webhook
	PaymentWebhookToken string

	// Verification cache
	VerifyCacheSize int
	VerifyCacheTTL  time.Duration

	// Largest multipart registro upload, in bytes
	MaxUploadBytes int64

	// Server
	Port        string
	Environment string
	BaseURL     string
}

var defaultCalendars = []string{
	"https://a.pool.opentimestamps.org",
	"https://b.pool.opentimestamps.org",
}

// Load reads configuration from the environment. A .env file in the working
// directory (or the file named by ENV_FILE) is loaded first when present;
// real environment variables take precedence over it.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		SupabaseURL:            v.GetString("SUPABASE_URL"),
		SupabasePublishableKey: v.GetString("SUPABASE_PUBLISHABLE_KEY"),
		SupabaseServiceRoleKey: v.GetString("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:      v.GetString("SUPABASE_JWT_SECRET"),
		SupabaseStorageBucket:  v.GetString("SUPABASE_STORAGE_BUCKET"),

		DatabaseURL: v.GetString("DATABASE_URL"),
		RedisURL:    v.GetString("REDIS_URL"),

		OTSCalendarURLs: splitList(v.GetString("OTS_CALENDAR_URLS")),
		OTSTimeout:      v.GetDuration("OTS_TIMEOUT"),
		AnchorSchedule:  v.GetString("ANCHOR_SCHEDULE"),
		AnchorBatchSize: v.GetInt("ANCHOR_BATCH_SIZE"),

		MonitorSchedule: v.GetString("MONITOR_SCHEDULE"),
		CronSecret:      v.GetString("CRON_SECRET"),

		PaymentWebhookToken: v.GetString("PAYMENT_WEBHOOK_TOKEN"),

		VerifyCacheSize: v.GetInt("VERIFY_CACHE_SIZE"),
		VerifyCacheTTL:  v.GetDuration("VERIFY_CACHE_TTL"),

		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),

		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		BaseURL:     v.GetString("BASE_URL"),
	}
	if len(cfg.OTSCalendarURLs) == 0 {
		cfg.OTSCalendarURLs = defaultCalendars
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SUPABASE_STORAGE_BUCKET", "proofs")
	v.SetDefault("OTS_TIMEOUT", "30s")
	v.SetDefault("ANCHOR_SCHEDULE", "@every 1m")
	v.SetDefault("ANCHOR_BATCH_SIZE", 20)
	v.SetDefault("MONITOR_SCHEDULE", "@every 5m")
	v.SetDefault("VERIFY_CACHE_SIZE", 1024)
	v.SetDefault("VERIFY_CACHE_TTL", "10m")
	v.SetDefault("MAX_UPLOAD_BYTES", 50<<20)
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("BASE_URL", "http://localhost:8080")
}

// Validate checks what every command needs.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.AnchorBatchSize <= 0 {
		return fmt.Errorf("ANCHOR_BATCH_SIZE must be positive")
	}
	if c.VerifyCacheSize <= 0 {
		return fmt.Errorf("VERIFY_CACHE_SIZE must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// ValidateServer checks the extra settings required to serve HTTP.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	return nil
}

// StorageEnabled reports whether proofs can be uploaded to Supabase Storage.
func (c *Config) StorageEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceRoleKey != ""
}

// RealtimeEnabled reports whether registro events can be published.
func (c *Config) RealtimeEnabled() bool {
	return c.SupabaseURL != "" && (c.SupabaseServiceRoleKey != "" || c.SupabasePublishableKey != "")
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.TrimRight(p, "/"))
		}
	}
	return out
}
