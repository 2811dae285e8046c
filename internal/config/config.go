// Package config loads and validates configuration from environment variables,
// for both the API server (Load) and the tracker CLI (LoadClient).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkordes/travel-log/internal/geo"
	"github.com/pkordes/travel-log/internal/search"
	"github.com/pkordes/travel-log/internal/tracker"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	LogLevel string

	// LogFormat is "json" (default) or "text" for coloured console output.
	LogFormat string

	// CORSOrigins is the list of allowed cross-origin request origins.
	CORSOrigins []string

	// JWTSecret signs access tokens. Required.
	JWTSecret string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// ResetTokenTTL is the lifetime of the access token in a recovery link.
	ResetTokenTTL time.Duration

	// AutoConfirm makes sign-up return a session immediately.
	// When false, sign-up mails a confirmation link and returns no session.
	AutoConfirm bool

	// ConfirmTokenTTL is the lifetime of an email confirmation link.
	ConfirmTokenTTL time.Duration

	// AllowEmailCheck enables GET /auth/email-exists. When false the
	// endpoint answers "unknown".
	AllowEmailCheck bool

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// PasswordResetRedirect is the default landing page of recovery links.
	PasswordResetRedirect string

	// EmailConfirmRedirect is the default landing page of confirmation links.
	EmailConfirmRedirect string
}

// Load reads the API server configuration.
// Returns an error listing any required variables that are not set and any
// values that could not be parsed.
func Load() (Config, error) {
	var p parser
	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
		CORSOrigins:           splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		AccessTokenTTL:        p.duration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:       p.duration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		ResetTokenTTL:         p.duration("RESET_TOKEN_TTL", time.Hour),
		AutoConfirm:           p.boolean("AUTO_CONFIRM", true),
		ConfirmTokenTTL:       p.duration("CONFIRM_TOKEN_TTL", 24*time.Hour),
		AllowEmailCheck:       p.boolean("ALLOW_EMAIL_CHECK", true),
		MaxBodyBytes:          p.positiveInt("MAX_BODY_BYTES", 1<<20),
		PasswordResetRedirect: getEnv("PASSWORD_RESET_REDIRECT", "http://localhost:5173/reset-password"),
		EmailConfirmRedirect:  getEnv("EMAIL_CONFIRM_REDIRECT", "http://localhost:5173/confirm"),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if err := p.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ClientConfig holds the configuration of the tracker CLI.
type ClientConfig struct {
	// APIURL is the base URL of the travel log API.
	APIURL string

	// StateDir is where the file-backed local store lives.
	StateDir string

	// RedisURL selects the redis local store when set.
	RedisURL string

	StorageKey     string
	BoundariesURL  string
	NominatimURL   string
	SearchDebounce time.Duration

	LogLevel  string
	LogFormat string
}

// LoadClient reads the tracker CLI configuration. Nothing is required.
func LoadClient() (ClientConfig, error) {
	var p parser
	cfg := ClientConfig{
		APIURL:         getEnv("TRACKER_API_URL", "http://localhost:8080"),
		StateDir:       getEnv("TRACKER_STATE_DIR", defaultStateDir()),
		RedisURL:       os.Getenv("TRACKER_REDIS_URL"),
		StorageKey:     getEnv("TRACKER_STORAGE_KEY", tracker.DefaultStorageKey),
		BoundariesURL:  getEnv("TRACKER_BOUNDARIES_URL", geo.DefaultBoundariesURL),
		NominatimURL:   getEnv("TRACKER_NOMINATIM_URL", search.DefaultNominatimURL),
		SearchDebounce: p.duration("TRACKER_SEARCH_DEBOUNCE", search.DefaultDelay),
		LogLevel:       getEnv("LOG_LEVEL", "warn"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}
	if err := p.err(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "travel-log")
	}
	return ".travel-log"
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parser reads typed variables and remembers which ones were malformed.
type parser struct {
	invalid []string
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return d
}

func (p *parser) boolean(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return b
}

func (p *parser) positiveInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return n
}

func (p *parser) err() error {
	if len(p.invalid) == 0 {
		return nil
	}
	return fmt.Errorf("invalid environment variables: %s", strings.Join(p.invalid, ", "))
}
