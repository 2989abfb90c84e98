package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Engine    EngineConfig
	Browser   BrowserConfig
	Board     BoardConfig
	Refresh   RefreshConfig
	Webhook   WebhookConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of accepted keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key or client IP.
	RequestsPerSecond float64 // default: 10

	// Burst is the maximum burst size per identity.
	Burst int // default: 20
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// EngineConfig selects and tunes the fetch engine.
type EngineConfig struct {
	// Kind is "http" (default), "browser", or "auto". Auto starts with the
	// HTTP engine and escalates to the browser after EscalationDelay.
	Kind string

	// UserAgent is sent with every HTTP engine request.
	UserAgent string

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64 // default: 10 MiB

	// EscalationDelay is how long "auto" waits on the HTTP engine before
	// also starting the browser.
	EscalationDelay time.Duration // default: 3s

	// DomainMemoryTTL is how long "auto" remembers the engine that last
	// succeeded for a host.
	DomainMemoryTTL time.Duration // default: 24h
}

// BrowserConfig controls the headless browser used by the "browser" engine.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is passed to the browser launcher.
	Proxy string

	// Stealth injects the go-rod stealth script before navigation.
	Stealth bool // default: false
}

// BoardConfig controls the entity board and its persisted records.
type BoardConfig struct {
	// ConfigPath is the saved board file. ".yaml"/".yml" selects YAML, anything else JSON.
	ConfigPath string // default: "config.json"

	// LoadOnStart loads ConfigPath when the server starts.
	LoadOnStart bool // default: false

	// ChangeThreshold is the simhash distance above which re-fetched text counts as changed.
	ChangeThreshold int // default: 0
}

// RefreshConfig controls periodic re-fetching of every entity.
type RefreshConfig struct {
	Enabled  bool          // default: false
	Interval time.Duration // default: 5m
}

// WebhookConfig controls change notifications.
type WebhookConfig struct {
	// URL receives entity.changed / entity.failed events. Empty disables delivery.
	URL string

	// Secret signs payloads with HMAC-SHA256 when non-empty.
	Secret string
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SCRAPEDECK_HOST", "127.0.0.1"),
			Port: envIntOr("SCRAPEDECK_PORT", 8080),
			Mode: envOr("SCRAPEDECK_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SCRAPEDECK_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SCRAPEDECK_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SCRAPEDECK_RATE_RPS", 10),
			Burst:             envIntOr("SCRAPEDECK_RATE_BURST", 20),
		},
		Log: LogConfig{
			Level:  envOr("SCRAPEDECK_LOG_LEVEL", "info"),
			Format: envOr("SCRAPEDECK_LOG_FORMAT", "text"),
		},
		Engine: EngineConfig{
			Kind:            envOr("SCRAPEDECK_ENGINE", "http"),
			UserAgent:       envOr("SCRAPEDECK_USER_AGENT", DefaultUserAgent),
			MaxBodyBytes:    int64(envIntOr("SCRAPEDECK_MAX_BODY_BYTES", 10<<20)),
			EscalationDelay: envDurationOr("SCRAPEDECK_ESCALATION_DELAY", 3*time.Second),
			DomainMemoryTTL: envDurationOr("SCRAPEDECK_DOMAIN_MEMORY_TTL", 24*time.Hour),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("SCRAPEDECK_HEADLESS", true),
			NoSandbox:  envBoolOr("SCRAPEDECK_NO_SANDBOX", false),
			BrowserBin: os.Getenv("SCRAPEDECK_BROWSER_BIN"),
			Proxy:      os.Getenv("SCRAPEDECK_PROXY"),
			Stealth:    envBoolOr("SCRAPEDECK_STEALTH", false),
		},
		Board: BoardConfig{
			ConfigPath:      envOr("SCRAPEDECK_CONFIG", "config.json"),
			LoadOnStart:     envBoolOr("SCRAPEDECK_LOAD_ON_START", false),
			ChangeThreshold: envIntOr("SCRAPEDECK_CHANGE_THRESHOLD", 0),
		},
		Refresh: RefreshConfig{
			Enabled:  envBoolOr("SCRAPEDECK_AUTO_REFRESH", false),
			Interval: envDurationOr("SCRAPEDECK_REFRESH_INTERVAL", 5*time.Minute),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("SCRAPEDECK_WEBHOOK_URL"),
			Secret: os.Getenv("SCRAPEDECK_WEBHOOK_SECRET"),
		},
	}
}

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
