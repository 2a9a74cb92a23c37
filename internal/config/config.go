// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"duck-access/manifest"
	"duck-access/rewrite"
	"duck-access/secret"
)

// Config holds the client-side configuration for manifest resolution and
// the mock manifest server.
type Config struct {
	APIURL string // manifest service base URL (DUCK_ACCESS_API_URL)
	APIKey string // credential sent as X-API-Key (DUCK_ACCESS_API_KEY)

	RequestTimeout time.Duration // hard timeout per manifest request (default 30s)
	SafetyMargin   time.Duration // freshness lead time before manifest expiry (default 60s)
	PolicyFailMode string        // "open" (default) or "closed"

	// Client-side rate limit on manifest fetches. Zero RPS disables it.
	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel string // debug, info, warn, error (default "info")

	// Mock manifest server settings.
	MockListenAddr string // default ":9321"
	MockFixture    string // path to the YAML fixture file

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// Configured reports whether a credential pair is present. Without one,
// table resolution is disabled and queries fall through to the engine.
func (c *Config) Configured() bool {
	return c.APIURL != "" && c.APIKey != ""
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FailMode maps the PolicyFailMode string onto the rewrite engine's mode.
func (c *Config) FailMode() rewrite.FailMode {
	if strings.EqualFold(c.PolicyFailMode, "closed") {
		return rewrite.FailClosed
	}
	return rewrite.FailOpen
}

// LoadFromEnv loads configuration from environment variables. Credentials
// are optional — without them the access path is simply inactive.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		APIURL:         os.Getenv(secret.EnvAPIURL),
		APIKey:         os.Getenv(secret.EnvAPIKey),
		PolicyFailMode: os.Getenv("DUCK_ACCESS_FAIL_MODE"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		MockListenAddr: os.Getenv("MOCK_LISTEN_ADDR"),
		MockFixture:    os.Getenv("MOCK_FIXTURE"),
	}

	var err error
	if cfg.RequestTimeout, err = parseDurationEnv("DUCK_ACCESS_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SafetyMargin, err = parseDurationEnv("DUCK_ACCESS_SAFETY_MARGIN", manifest.DefaultSafetyMargin); err != nil {
		return nil, err
	}

	if v := os.Getenv("DUCK_ACCESS_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("DUCK_ACCESS_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	switch strings.ToLower(cfg.PolicyFailMode) {
	case "", "open", "closed":
	default:
		return nil, fmt.Errorf("DUCK_ACCESS_FAIL_MODE must be \"open\" or \"closed\", got %q", cfg.PolicyFailMode)
	}

	// Defaults
	if cfg.PolicyFailMode == "" {
		cfg.PolicyFailMode = "open"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MockListenAddr == "" {
		cfg.MockListenAddr = ":9321"
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 1
	}

	if cfg.APIURL != "" && cfg.APIKey == "" {
		cfg.Warnings = append(cfg.Warnings, "DUCK_ACCESS_API_URL is set without DUCK_ACCESS_API_KEY — table resolution stays disabled")
	}
	if cfg.APIKey != "" && cfg.APIURL == "" {
		cfg.Warnings = append(cfg.Warnings, "DUCK_ACCESS_API_KEY is set without DUCK_ACCESS_API_URL — table resolution stays disabled")
	}

	return cfg, nil
}

// parseDurationEnv reads a duration variable, returning the default when
// unset. A present but unparsable value is a hard error rather than a
// silent fallback.
func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
