// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the platform token and gated channels,
// fetch retry policy, broadcast pacing, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Platform
	Token       string // bot token
	APIBase     string // override for tests; empty means production API
	OwnerID     int64  // owner user id
	WebhookURL  string // public base URL the platform posts to
	WebhookPath string // local webhook route, e.g. /webhook

	// Membership gating
	Channel1ID  int64
	Channel1URL string
	Channel2ID  int64
	Channel2URL string

	// App
	DBPath       string // SQLite path
	StatsChannel int64  // daily digest destination; 0 disables

	// Fetch
	FetchRetries  int
	FetchTimeout  time.Duration
	FetchBackoff  time.Duration
	FetchRetry5xx bool // opt server errors into the retry loop

	// Broadcast
	BroadcastDelay time.Duration // pause between successful relays

	// Conversational state
	RedisURL string        // optional; empty selects the in-memory store
	ConvoTTL time.Duration // unfinished form lifetime

	// Webhook dedup
	DedupTTL time.Duration

	// Daily digest
	DigestCron string // cron spec; empty disables

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Platform
		Token:       getenv("TOKEN", ""),
		APIBase:     getenv("API_BASE", ""),
		OwnerID:     getint64("OWNER_ID", 8104850843),
		WebhookURL:  getenv("WEBHOOK_URL", ""),
		WebhookPath: normalizePath(getenv("WEBHOOK_PATH", "/webhook")),

		// Membership gating
		Channel1ID:  getint64("CHANNEL1_ID", -1003090922367),
		Channel1URL: getenv("CHANNEL1_URL", "https://t.me/all_data_here"),
		Channel2ID:  getint64("CHANNEL2_ID", -1003698567122),
		Channel2URL: getenv("CHANNEL2_URL", "https://t.me/osint_lookup"),

		// App
		DBPath:       getenv("DB_PATH", "bot.db"),
		StatsChannel: getint64("STATS_CHANNEL", 0),

		// Fetch
		FetchRetries:  getint("FETCH_RETRIES", 3),
		FetchTimeout:  getdur("FETCH_TIMEOUT", 30*time.Second),
		FetchBackoff:  getdur("FETCH_BACKOFF", time.Second),
		FetchRetry5xx: getbool("FETCH_RETRY_5XX", false),

		// Broadcast
		BroadcastDelay: getdur("BROADCAST_DELAY", 100*time.Millisecond),

		// Conversational state
		RedisURL: getenv("REDIS_URL", ""),
		ConvoTTL: getdur("CONVO_TTL", 15*time.Minute),

		// Webhook dedup
		DedupTTL: getdur("DEDUP_TTL", 5*time.Minute),

		// Daily digest
		DigestCron: getenv("DIGEST_CRON", ""),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "lookup-gateway"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return cfg, errors.New("TOKEN must not be empty")
	}
	if cfg.OwnerID == 0 {
		return cfg, errors.New("OWNER_ID must not be zero")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.FetchRetries < 1 {
		return cfg, errors.New("FETCH_RETRIES must be >= 1")
	}
	if cfg.FetchTimeout <= 0 || cfg.FetchBackoff <= 0 {
		return cfg, errors.New("fetch timeout and backoff must be positive durations")
	}
	if cfg.BroadcastDelay < 0 {
		return cfg, errors.New("BROADCAST_DELAY must be >= 0")
	}
	if cfg.ConvoTTL <= 0 {
		return cfg, errors.New("CONVO_TTL must be > 0")
	}
	if cfg.DedupTTL <= 0 {
		return cfg, errors.New("DEDUP_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// normalizePath ensures a leading '/' and strips a trailing '/'.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/webhook"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
