// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the settings for the
// HTTP server, persistence, Redis, the Telegram bot, search, broadcasts,
// dashboard caching, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DatabaseConfig selects the SQL driver and its DSN.
type DatabaseConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path
	URL    string // Postgres DSN
}

// RedisConfig points at the Redis instance used for caching, per-user bot
// state and the delivery job queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelegramConfig holds Bot API credentials.
type TelegramConfig struct {
	BotToken      string        // BOT_TOKEN; empty disables delivery
	APIEndpoint   string        // TELEGRAM_API_ENDPOINT, printf format with token and method
	WebhookSecret string        // WEBHOOK_SECRET, compared with X-Telegram-Bot-Api-Secret-Token
	Timeout       time.Duration // DELIVERY_TIMEOUT, per Bot API call
}

// SearchConfig configures the search backend and its result cache.
type SearchConfig struct {
	Backend  string        // local|elasticsearch
	ESURLs   []string      // ELASTICSEARCH_URLS
	ESIndex  string        // ELASTICSEARCH_INDEX
	Timeout  time.Duration // SEARCH_TIMEOUT
	CacheTTL time.Duration // SEARCH_CACHE_TTL
}

// BroadcastConfig controls fan-out pacing and the delivery worker pool.
type BroadcastConfig struct {
	EnqueueDelay      time.Duration // BROADCAST_ENQUEUE_DELAY
	IncludeLeft       bool          // BROADCAST_INCLUDE_LEFT
	QueueKey          string        // QUEUE_KEY
	Workers           int           // WORKER_COUNT
	SchedulerInterval time.Duration // SCHEDULER_INTERVAL
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

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for admin API routes

	// Storage
	Database DatabaseConfig
	Redis    RedisConfig

	// Bot
	Telegram     TelegramConfig
	UserStateTTL time.Duration // USER_STATE_TTL

	// Features
	Search    SearchConfig
	Broadcast BroadcastConfig
	StatsTTL  time.Duration // STATS_TTL
	ChartTTL  time.Duration // CHART_TTL

	// Admin auth
	AdminJWTSecret string // ADMIN_JWT_SECRET

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		Database: DatabaseConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "filebot.db"),
			URL:    getenv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},

		// Bot
		Telegram: TelegramConfig{
			BotToken:      strings.TrimSpace(getenv("BOT_TOKEN", "")),
			APIEndpoint:   getenv("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s"),
			WebhookSecret: getenv("WEBHOOK_SECRET", ""),
			Timeout:       getdur("DELIVERY_TIMEOUT", 10*time.Second),
		},
		UserStateTTL: getdur("USER_STATE_TTL", 24*time.Hour),

		// Features
		Search: SearchConfig{
			Backend:  strings.ToLower(getenv("SEARCH_BACKEND", "local")),
			ESURLs:   splitCSV(getenv("ELASTICSEARCH_URLS", "http://localhost:9200")),
			ESIndex:  getenv("ELASTICSEARCH_INDEX", "documents"),
			Timeout:  getdur("SEARCH_TIMEOUT", 5*time.Second),
			CacheTTL: getdur("SEARCH_CACHE_TTL", 5*time.Minute),
		},
		Broadcast: BroadcastConfig{
			EnqueueDelay:      getdur("BROADCAST_ENQUEUE_DELAY", 40*time.Millisecond),
			IncludeLeft:       getbool("BROADCAST_INCLUDE_LEFT", false),
			QueueKey:          getenv("QUEUE_KEY", "filebot:jobs"),
			Workers:           getint("WORKER_COUNT", 4),
			SchedulerInterval: getdur("SCHEDULER_INTERVAL", 30*time.Second),
		},
		StatsTTL: getdur("STATS_TTL", 5*time.Minute),
		ChartTTL: getdur("CHART_TTL", 10*time.Minute),

		AdminJWTSecret: getenv("ADMIN_JWT_SECRET", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-filebot-backend"),
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
	if cfg.Database.Driver == "postgresql" || cfg.Database.Driver == "pg" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Search.Backend == "es" || cfg.Search.Backend == "elastic" {
		cfg.Search.Backend = "elasticsearch"
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
	switch cfg.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.Database.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.Database.URL) == "" {
			return cfg, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return cfg, errors.New("REDIS_ADDR must not be empty")
	}
	if cfg.Telegram.Timeout <= 0 {
		return cfg, errors.New("DELIVERY_TIMEOUT must be > 0")
	}
	if strings.Count(cfg.Telegram.APIEndpoint, "%s") != 2 {
		return cfg, errors.New("TELEGRAM_API_ENDPOINT must contain two %s verbs (token, method)")
	}
	switch cfg.Search.Backend {
	case "local":
	case "elasticsearch":
		if len(cfg.Search.ESURLs) == 0 {
			return cfg, errors.New("ELASTICSEARCH_URLS must not be empty when SEARCH_BACKEND=elasticsearch")
		}
	default:
		return cfg, errors.New("SEARCH_BACKEND must be one of: local, elasticsearch")
	}
	if cfg.Search.Timeout <= 0 || cfg.Search.CacheTTL <= 0 {
		return cfg, errors.New("SEARCH_TIMEOUT and SEARCH_CACHE_TTL must be > 0")
	}
	if cfg.StatsTTL <= 0 || cfg.ChartTTL <= 0 {
		return cfg, errors.New("STATS_TTL and CHART_TTL must be > 0")
	}
	if cfg.UserStateTTL <= 0 {
		return cfg, errors.New("USER_STATE_TTL must be > 0")
	}
	if cfg.Broadcast.EnqueueDelay < 0 {
		return cfg, errors.New("BROADCAST_ENQUEUE_DELAY must be >= 0")
	}
	if cfg.Broadcast.Workers < 1 {
		return cfg, errors.New("WORKER_COUNT must be >= 1")
	}
	if strings.TrimSpace(cfg.Broadcast.QueueKey) == "" {
		return cfg, errors.New("QUEUE_KEY must not be empty")
	}
	if cfg.Broadcast.SchedulerInterval <= 0 {
		return cfg, errors.New("SCHEDULER_INTERVAL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// BotEnabled reports whether a Bot API token is configured.
func (c Config) BotEnabled() bool { return c.Telegram.BotToken != "" }

// ---- helpers ----

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

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
