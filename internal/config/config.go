// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all env configuration vars for the bot host.
type Config struct {
	Port     string
	LogLevel slog.Level

	// BaseURL is the public scheme://host of the bot. Required for the chi
	// host; the mux host learns it from the first request when empty.
	BaseURL    string
	HostFlavor string // "chi" (default) or "mux"

	// RedisURL selects the Redis handshake store. Empty uses the in-memory store.
	RedisURL string

	// AuditDatabaseURL enables the Postgres audit trail when set.
	AuditDatabaseURL string

	// PendingTTL bounds how long an issued magic code waits to be typed. Default 10m.
	PendingTTL time.Duration

	// MagicCodeBytes is the random length of a code (hex doubles it). Default 4.
	MagicCodeBytes int

	// MagicCodeRedirect, when set, receives the code as ?magicCode= instead of the plain text page.
	MagicCodeRedirect string

	// NoUserFoundMessage is sent before the login card when non-empty.
	NoUserFoundMessage string

	// ProvidersFile is an optional YAML file of provider settings.
	ProvidersFile string
}

// LoadConfig reads environment variables and returns a validated Config.
// In development (APP_ENV empty or "development") a .env file is loaded first
// if present; real environment variables take precedence.
func LoadConfig() (*Config, error) {
	if env := os.Getenv("APP_ENV"); env == "" || env == "development" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	// Create config obj
	cfg := &Config{}

	// Attempt to get port num, default to 3978
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "3978"
	}

	cfg.HostFlavor = strings.ToLower(os.Getenv("HOST_FLAVOR"))
	if cfg.HostFlavor == "" {
		cfg.HostFlavor = "chi"
	}
	if cfg.HostFlavor != "chi" && cfg.HostFlavor != "mux" {
		return nil, fmt.Errorf("HOST_FLAVOR must be chi or mux, got %q", cfg.HostFlavor)
	}

	// chi has no other way to learn its address
	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" && cfg.HostFlavor == "chi" {
		return nil, fmt.Errorf("BASE_URL is required when HOST_FLAVOR is chi")
	}
	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "https://") && !strings.HasPrefix(cfg.BaseURL, "http://") {
		return nil, fmt.Errorf("BASE_URL must start with http:// or https://")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.AuditDatabaseURL = os.Getenv("AUDIT_DATABASE_URL")

	// Parse log level, default to info
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	cfg.PendingTTL = envDuration("PENDING_TTL", 10*time.Minute)

	// Shorter codes are rejected rather than defaulted; a typo must not weaken them.
	cfg.MagicCodeBytes = 4
	if v := os.Getenv("MAGIC_CODE_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 4 {
			return nil, fmt.Errorf("MAGIC_CODE_BYTES must be an integer of at least 4, got %q", v)
		}
		cfg.MagicCodeBytes = n
	}

	cfg.MagicCodeRedirect = os.Getenv("MAGIC_CODE_REDIRECT")
	cfg.NoUserFoundMessage = os.Getenv("NO_USER_FOUND_MESSAGE")
	cfg.ProvidersFile = os.Getenv("PROVIDERS_FILE")

	return cfg, nil
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
