// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultCategories is the suggestion vocabulary offered to users.
var DefaultCategories = []string{
	"nature", "architecture", "people", "animals", "food",
	"technology", "objects", "abstract", "travel", "fashion",
}

// DefaultReactions is the emoji set used for post reactions.
var DefaultReactions = []string{
	"👍", "❤️", "🔥", "🥰", "👏", "😁", "🤩", "🎉", "🙏", "👌",
	"😍", "💯", "⚡", "🏆", "🤗", "😎", "🦄", "👀", "🆒", "💘",
}

// Load reads configs/config.yaml, merges config.<env>.yaml, then applies env overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setViperDefaults(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setViperDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "wallpaper-bot")
	v.SetDefault("app.version", "2.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("bot.owner_user_id", 0)
	v.SetDefault("bot.owner_username", "")
	v.SetDefault("bot.owner_has_premium", false)
	v.SetDefault("bot.maintenance", false)

	v.SetDefault("providers.unsplash_key", "")
	v.SetDefault("providers.pexels_key", "")
	v.SetDefault("providers.pixabay_key", "")
	v.SetDefault("providers.unsplash_base_url", "https://api.unsplash.com")
	v.SetDefault("providers.pexels_base_url", "https://api.pexels.com")
	v.SetDefault("providers.pixabay_base_url", "https://pixabay.com")
	v.SetDefault("providers.demo_base_url", "https://picsum.photos")
	v.SetDefault("providers.request_timeout", 30000)
	v.SetDefault("providers.user_agent", "LastPerson07Bot/2.0.0")

	v.SetDefault("entitlement.free_daily_limit", 5)
	v.SetDefault("entitlement.atomic_consume", false)
	v.SetDefault("entitlement.enforce_expiration_inline", false)

	v.SetDefault("categories", DefaultCategories)
	v.SetDefault("reactions", DefaultReactions)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cleanup_interval", time.Hour)
	v.SetDefault("scheduler.log_retention_days", 30)
	v.SetDefault("scheduler.webhook_url", "")

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "")
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.redis.key_prefix", "wallpaper:")

	v.SetDefault("server.address", ":8080")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// loadEnvFile loads the first .env found walking up from the working directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// Unset variables expand to "" so the alias overrides below can still fill them.
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig honours the short env names operators already use.
func overrideEmptyConfig(cfg *Config) {
	setString := func(dst *string, env string) {
		if *dst == "" {
			if val := os.Getenv(env); val != "" {
				*dst = val
			}
		}
	}

	setString(&cfg.Providers.UnsplashKey, "UNSPLASH_KEY")
	setString(&cfg.Providers.PexelsKey, "PEXELS_KEY")
	setString(&cfg.Providers.PixabayKey, "PIXABAY_KEY")
	setString(&cfg.Bot.OwnerUsername, "OWNER_USERNAME")
	setString(&cfg.Database.Redis.Address, "REDIS_ADDRESS")
	setString(&cfg.Database.Postgres.User, "DB_USER")
	setString(&cfg.Database.Postgres.Password, "DB_PASSWORD")

	if val := os.Getenv("DATABASE_DRIVER"); val != "" {
		cfg.Database.Driver = val
	}

	if cfg.Bot.OwnerUserID == 0 {
		if val := os.Getenv("OWNER_USER_ID"); val != "" {
			if id, err := strconv.ParseInt(val, 10, 64); err == nil {
				cfg.Bot.OwnerUserID = id
			}
		}
	}

	if val := os.Getenv("FREE_FETCH_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Entitlement.FreeDailyLimit = n
		}
	}

	if val := os.Getenv("OWNER_HAS_PREMIUM"); val != "" {
		cfg.Bot.OwnerHasPremium = strings.EqualFold(val, "true")
	}
	if val := os.Getenv("MAINTENANCE"); val != "" {
		cfg.Bot.Maintenance = strings.EqualFold(val, "true")
	}
}

// applyDefaults covers zero values left by explicit empty entries in the config file.
func applyDefaults(cfg *Config) {
	if cfg.Providers.RequestTimeout == 0 {
		cfg.Providers.RequestTimeout = 30000
	}
	if cfg.Providers.UserAgent == "" {
		cfg.Providers.UserAgent = "LastPerson07Bot/2.0.0"
	}
	if cfg.Providers.DemoBaseURL == "" {
		cfg.Providers.DemoBaseURL = "https://picsum.photos"
	}

	if cfg.Entitlement.FreeDailyLimit == 0 {
		cfg.Entitlement.FreeDailyLimit = 5
	}

	if len(cfg.Categories) == 0 {
		cfg.Categories = append([]string(nil), DefaultCategories...)
	}
	if len(cfg.Reactions) == 0 {
		cfg.Reactions = append([]string(nil), DefaultReactions...)
	}

	if cfg.Scheduler.CleanupInterval == 0 {
		cfg.Scheduler.CleanupInterval = time.Hour
	}
	if cfg.Scheduler.LogRetentionDays == 0 {
		cfg.Scheduler.LogRetentionDays = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverMemory
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Entitlement.FreeDailyLimit <= 0 {
		return fmt.Errorf("entitlement.free_daily_limit must be positive")
	}
	if len(cfg.Categories) == 0 {
		return fmt.Errorf("categories cannot be empty")
	}
	if cfg.Providers.RequestTimeout <= 0 {
		return fmt.Errorf("providers.request_timeout must be positive")
	}
	if cfg.Scheduler.LogRetentionDays < 0 {
		return fmt.Errorf("scheduler.log_retention_days cannot be negative")
	}

	switch cfg.Database.Driver {
	case DriverMemory:
	case DriverRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis driver")
		}
	case DriverPostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for the postgres driver")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required for the postgres driver")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", cfg.Database.Driver)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
