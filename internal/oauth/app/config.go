package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/metrics"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// Store drivers and session backends.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	SessionsMemory = "memory"
	SessionsRedis  = "redis"
)

type Config struct {
	OAuth service.Config // OAUTH_* policy and token lifetimes

	BcryptCost int // Optional: bcrypt cost for new password hashes (default: 12, min: 10)

	DBDriver     string // Optional: token store driver, sqlite or postgres (default: sqlite)
	DatabaseFile string // Optional: path to the SQLite database file (default: ./gatekeeper.db)
	DatabaseURL  string // Required for postgres: connection string

	SessionStore        string        // Optional: session backend, memory or redis (default: memory)
	SessionSecret       string        // Required outside dev: HMAC key for the session cookie
	SessionTTL          time.Duration // Optional: session lifetime (default: 12h)
	SessionCookieSecure bool          // Optional: Secure flag on the session cookie (default: true outside dev)
	RedisAddr           string        // Optional: redis address (default: localhost:6379)
	RedisPassword       string        // Optional
	RedisDB             int           // Optional (default: 0)

	MetricsEnabled bool   // Optional: run the metrics server (default: true)
	MetricsAddr    string // Optional: metrics listen address (default: :9090)

	TrustProxyHeaders bool // Optional: rate limit on X-Forwarded-For/X-Real-IP (default: false)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	oauth := service.DefaultConfig()
	env := getEnvOrDefault("ENV", "dev")

	return Config{
		OAuth: service.Config{
			EnforceState:               getEnvBoolOrDefault("OAUTH_ENFORCE_STATE", oauth.EnforceState),
			AllowImplicit:              getEnvBoolOrDefault("OAUTH_ALLOW_IMPLICIT", oauth.AllowImplicit),
			AccessTokenTTL:             getEnvDurationOrDefault("OAUTH_ACCESS_TOKEN_TTL", oauth.AccessTokenTTL),
			RefreshTokenTTL:            getEnvDurationOrDefault("OAUTH_REFRESH_TOKEN_TTL", oauth.RefreshTokenTTL),
			AuthCodeTTL:                getEnvDurationOrDefault("OAUTH_AUTH_CODE_TTL", oauth.AuthCodeTTL),
			AlwaysIssueNewRefreshToken: getEnvBoolOrDefault("OAUTH_ALWAYS_ISSUE_NEW_REFRESH_TOKEN", oauth.AlwaysIssueNewRefreshToken),
			UnsetRefreshTokenAfterUse:  getEnvBoolOrDefault("OAUTH_UNSET_REFRESH_TOKEN_AFTER_USE", oauth.UnsetRefreshTokenAfterUse),
			RequireVerification:        getEnvBoolOrDefault("OAUTH_REQUIRE_VERIFICATION", oauth.RequireVerification),
		},

		BcryptCost: getEnvIntOrDefault("PASSWORD_BCRYPT_COST", cryptox.DefaultBcryptCost),

		DBDriver:     getEnvOrDefault("DB_DRIVER", DriverSQLite),
		DatabaseFile: getEnvOrDefault("DB_FILE", "gatekeeper.db"),
		DatabaseURL:  os.Getenv("DB_URL"),

		SessionStore:        getEnvOrDefault("SESSION_STORE", SessionsMemory),
		SessionSecret:       os.Getenv("SESSION_SECRET"),
		SessionTTL:          getEnvDurationOrDefault("SESSION_TTL", 12*time.Hour),
		SessionCookieSecure: getEnvBoolOrDefault("SESSION_COOKIE_SECURE", env != "dev"),
		RedisAddr:           getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvIntOrDefault("REDIS_DB", 0),

		MetricsEnabled: getEnvBoolOrDefault("METRICS_ENABLED", true),
		MetricsAddr:    getEnvOrDefault("METRICS_ADDR", metrics.DefaultAddr),

		TrustProxyHeaders: getEnvBoolOrDefault("TRUST_PROXY_HEADERS", false),

		Env:                 env,
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Validate reports every problem with cfg at once.
func (c Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("DB_FILE is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DB_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver))
	}

	switch c.SessionStore {
	case SessionsMemory:
	case SessionsRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis session store"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionsMemory, SessionsRedis, c.SessionStore))
	}

	if c.SessionSecret != "" && len(c.SessionSecret) < jwtx.MinSecretSize {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", jwtx.MinSecretSize))
	}
	if c.SessionSecret == "" && c.Env != "dev" {
		errs = append(errs, errors.New("SESSION_SECRET is required outside dev"))
	}

	for name, d := range map[string]time.Duration{
		"OAUTH_ACCESS_TOKEN_TTL":  c.OAuth.AccessTokenTTL,
		"OAUTH_REFRESH_TOKEN_TTL": c.OAuth.RefreshTokenTTL,
		"OAUTH_AUTH_CODE_TTL":     c.OAuth.AuthCodeTTL,
		"SESSION_TTL":             c.SessionTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if c.BcryptCost < cryptox.MinBcryptCost {
		errs = append(errs, fmt.Errorf("PASSWORD_BCRYPT_COST must be at least %d", cryptox.MinBcryptCost))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
