// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Bot         BotConfig         `mapstructure:"bot"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Entitlement EntitlementConfig `mapstructure:"entitlement"`
	Categories  []string          `mapstructure:"categories"`
	Reactions   []string          `mapstructure:"reactions"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BotConfig holds owner identity and process-wide switches.
type BotConfig struct {
	OwnerUserID     int64  `mapstructure:"owner_user_id"`
	OwnerUsername   string `mapstructure:"owner_username"`
	OwnerHasPremium bool   `mapstructure:"owner_has_premium"`
	Maintenance     bool   `mapstructure:"maintenance"`
}

// ProvidersConfig holds image provider credentials and HTTP settings.
// Empty keys disable the provider; all empty selects demo mode.
type ProvidersConfig struct {
	UnsplashKey string `mapstructure:"unsplash_key"`
	PexelsKey   string `mapstructure:"pexels_key"`
	PixabayKey  string `mapstructure:"pixabay_key"`

	UnsplashBaseURL string `mapstructure:"unsplash_base_url"`
	PexelsBaseURL   string `mapstructure:"pexels_base_url"`
	PixabayBaseURL  string `mapstructure:"pixabay_base_url"`
	DemoBaseURL     string `mapstructure:"demo_base_url"`

	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	UserAgent      string `mapstructure:"user_agent"`
}

// EntitlementConfig holds the free tier quota and consistency switches.
type EntitlementConfig struct {
	FreeDailyLimit          int  `mapstructure:"free_daily_limit"`
	AtomicConsume           bool `mapstructure:"atomic_consume"`
	EnforceExpirationInline bool `mapstructure:"enforce_expiration_inline"`
}

type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	LogRetentionDays int           `mapstructure:"log_retention_days"`
	// WebhookURL receives scheduled posts. Empty logs posts instead of sending them.
	WebhookURL string `mapstructure:"webhook_url"`
}

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DemoMode reports whether no provider credential is configured.
func (p ProvidersConfig) DemoMode() bool {
	return p.UnsplashKey == "" && p.PexelsKey == "" && p.PixabayKey == ""
}

// Timeout returns the per-request HTTP timeout.
func (p ProvidersConfig) Timeout() time.Duration {
	return GetDuration(p.RequestTimeout)
}
