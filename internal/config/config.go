package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr           = ":8080"
	defaultDatabaseURL        = "accessgate.db"
	defaultJWTAccessTTL       = "15m"
	defaultRefreshTTL         = "168h"
	defaultMaxActiveSessions  = "10"
	defaultCookieSecure       = "false"
	defaultCookieSameSite     = "Lax"
	defaultCookiePath         = "/api/v1/auth"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultRefreshTokenPepper = "change-me-refresh-pepper"
	defaultMaxFailures        = "5"
	defaultWindow             = "15m"
	defaultLockout            = "15m"
	defaultRateLimitBackend   = BackendSQL
	defaultStoreTimeout       = "2s"
	defaultHashTimeout        = "3s"
	defaultBcryptCost         = "10"
	defaultLogLevel           = "info"

	minAccessTTL = 15 * time.Minute
	maxAccessTTL = 60 * time.Minute
)

// Rate limit store backends.
const (
	BackendSQL    = "sql"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string

	JWTSecret          string
	JWTAccessTTL       time.Duration
	RefreshTTL         time.Duration
	RefreshTokenPepper string
	MaxActiveSessions  int

	CookieSecure   bool
	CookieSameSite string
	CookiePath     string
	CookieDomain   string

	RateLimitMaxFailures int
	RateLimitWindow      time.Duration
	RateLimitLockout     time.Duration
	RateLimitBackend     string
	RedisURL             string

	StoreTimeout time.Duration
	HashTimeout  time.Duration
	BcryptCost   int

	LogLevel  string
	LogPretty bool

	TrustedProxies     []string
	CORSAllowedOrigins []string
	InternalAPIToken   string
	InternalAllowedIPs []string
}

// Load reads the process environment. Callers load .env files beforehand.
func Load() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.RefreshTokenPepper = strings.TrimSpace(getEnv("REFRESH_TOKEN_PEPPER", defaultRefreshTokenPepper))

	var err error
	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = parseDurationEnv("REFRESH_TTL", defaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.MaxActiveSessions, err = parseIntEnv("MAX_ACTIVE_SESSIONS", defaultMaxActiveSessions); err != nil {
		return nil, err
	}

	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.CookieSameSite = strings.TrimSpace(getEnv("COOKIE_SAMESITE", defaultCookieSameSite))
	cfg.CookiePath = strings.TrimSpace(getEnv("COOKIE_PATH", defaultCookiePath))
	cfg.CookieDomain = strings.TrimSpace(os.Getenv("COOKIE_DOMAIN"))

	if cfg.RateLimitMaxFailures, err = parseIntEnv("RATE_LIMIT_MAX_FAILURES", defaultMaxFailures); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = parseDurationEnv("RATE_LIMIT_WINDOW", defaultWindow); err != nil {
		return nil, err
	}
	if cfg.RateLimitLockout, err = parseDurationEnv("RATE_LIMIT_LOCKOUT", defaultLockout); err != nil {
		return nil, err
	}
	cfg.RateLimitBackend = strings.ToLower(strings.TrimSpace(getEnv("RATE_LIMIT_BACKEND", defaultRateLimitBackend)))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	if cfg.StoreTimeout, err = parseDurationEnv("STORE_TIMEOUT", defaultStoreTimeout); err != nil {
		return nil, err
	}
	if cfg.HashTimeout, err = parseDurationEnv("HASH_TIMEOUT", defaultHashTimeout); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = parseIntEnv("BCRYPT_COST", defaultBcryptCost); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	cfg.LogPretty = parseBoolEnv("LOG_PRETTY", "false")

	cfg.TrustedProxies = parseListEnv("TRUSTED_PROXIES")
	cfg.CORSAllowedOrigins = parseListEnv("CORS_ALLOWED_ORIGINS")
	cfg.InternalAPIToken = strings.TrimSpace(os.Getenv("INTERNAL_API_TOKEN"))
	cfg.InternalAllowedIPs = parseListEnv("INTERNAL_ALLOWED_IPS")

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWTAccessTTL < minAccessTTL || cfg.JWTAccessTTL > maxAccessTTL {
		return fmt.Errorf("JWT_ACCESS_TTL must be between %s and %s", minAccessTTL, maxAccessTTL)
	}
	if cfg.RefreshTTL <= cfg.JWTAccessTTL {
		return fmt.Errorf("REFRESH_TTL must be longer than JWT_ACCESS_TTL")
	}
	if cfg.MaxActiveSessions < 1 {
		return fmt.Errorf("MAX_ACTIVE_SESSIONS must be >= 1")
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	sameSite := strings.ToLower(cfg.CookieSameSite)
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}
	if cfg.RateLimitMaxFailures < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX_FAILURES must be >= 1")
	}
	if cfg.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if cfg.RateLimitLockout <= 0 {
		return fmt.Errorf("RATE_LIMIT_LOCKOUT must be > 0")
	}
	switch cfg.RateLimitBackend {
	case BackendSQL, BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be one of: sql, redis, memory")
	}
	if cfg.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be > 0")
	}
	if cfg.HashTimeout <= 0 {
		return fmt.Errorf("HASH_TIMEOUT must be > 0")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if len(cfg.JWTSecret) < 32 {
			return fmt.Errorf("in prod/release JWT_SECRET must be at least 32 bytes")
		}
		if isEmptyOrDefault(cfg.RefreshTokenPepper, defaultRefreshTokenPepper) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_PEPPER must be set and not default")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
		if cfg.RateLimitBackend == BackendMemory {
			return fmt.Errorf("in prod/release RATE_LIMIT_BACKEND=memory is not allowed")
		}
	}

	return nil
}

// IsProdLike reports whether the service runs with production hardening.
func (c *Config) IsProdLike() bool {
	return isProdLike(c.AppEnv)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseListEnv(name string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
