// Package config provides application configuration loaded from environment
// variables with defaults and validation. The resulting Config is built once
// at process start and passed explicitly to every component; nothing else in
// the bot reads the environment.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // DELIVERY_TIMEZONE must resolve in minimal images
)

// SourceConfig points at the external reflections API.
type SourceConfig struct {
	BaseURL string        // EXTERNAL_API, e.g. "https://example.org/reflections"
	Timeout time.Duration // EXTERNAL_TIMEOUT
}

// DiscordConfig holds the interaction credentials and outbound targets.
type DiscordConfig struct {
	PublicKey     string // DISCORD_PUBLIC_KEY (hex Ed25519)
	ClientID      string // DISCORD_CLIENT_ID
	APIBase       string // DISCORD_API_BASE
	WebhookPrefix string // WEBHOOK_PREFIX; targets are PREFIX_1..PREFIX_N
	WebhookURLs   []string
	Timeout       time.Duration // WEBHOOK_TIMEOUT
}

// ScheduleConfig describes the scheduled trigger and internal bearer auth.
type ScheduleConfig struct {
	BotToken    string        // SCHEDULED_BOT_TOKEN
	Header      string        // SCHEDULE_HEADER
	HeaderValue string        // SCHEDULE_HEADER_VALUE
	JitterMax   time.Duration // SCHEDULE_JITTER_MAX
	Timezone    string        // DELIVERY_TIMEZONE
	Location    *time.Location
}

// BackfillConfig tunes the bulk import.
type BackfillConfig struct {
	BatchSize int           // BACKFILL_BATCH_SIZE
	Delay     time.Duration // BACKFILL_DELAY
}

// WorkerConfig configures the asynq queue and periodic tasks. An empty
// RedisURL disables the worker.
type WorkerConfig struct {
	RedisURL         string // REDIS_URL
	DeliverySchedule string // DELIVERY_SCHEDULE (cron)
	PingSchedule     string // PING_SCHEDULE (cron)
	AppURL           string // APP_URL, base URL the pinger calls
	Concurrency      int    // WORKER_CONCURRENCY
}

// Enabled reports whether a queue is configured.
func (w WorkerConfig) Enabled() bool { return strings.TrimSpace(w.RedisURL) != "" }

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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "daily-reflections-bot")
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

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBPath string // SQLite path

	// Domain
	Source   SourceConfig
	Discord  DiscordConfig
	Schedule ScheduleConfig
	Backfill BackfillConfig
	Worker   WorkerConfig

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
		DBPath: getenv("DB_PATH", "reflections.db"),

		// Domain
		Source: SourceConfig{
			BaseURL: strings.TrimRight(getenv("EXTERNAL_API", ""), "/"),
			Timeout: getdur("EXTERNAL_TIMEOUT", 10*time.Second),
		},
		Discord: DiscordConfig{
			PublicKey:     strings.TrimSpace(getenv("DISCORD_PUBLIC_KEY", "")),
			ClientID:      getenv("DISCORD_CLIENT_ID", ""),
			APIBase:       getenv("DISCORD_API_BASE", "https://discord.com/api/v10"),
			WebhookPrefix: getenv("WEBHOOK_PREFIX", "DISCORD_WEBHOOK_URL"),
			Timeout:       getdur("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Schedule: ScheduleConfig{
			BotToken:    getenv("SCHEDULED_BOT_TOKEN", ""),
			Header:      getenv("SCHEDULE_HEADER", "X-NF-Event"),
			HeaderValue: getenv("SCHEDULE_HEADER_VALUE", "schedule"),
			JitterMax:   getdur("SCHEDULE_JITTER_MAX", 30*time.Second),
			Timezone:    getenv("DELIVERY_TIMEZONE", "UTC"),
		},
		Backfill: BackfillConfig{
			BatchSize: getint("BACKFILL_BATCH_SIZE", 20),
			Delay:     getdur("BACKFILL_DELAY", 5500*time.Millisecond),
		},
		Worker: WorkerConfig{
			RedisURL:         getenv("REDIS_URL", ""),
			DeliverySchedule: getenv("DELIVERY_SCHEDULE", "0 12 * * *"),
			PingSchedule:     getenv("PING_SCHEDULE", "*/15 * * * *"),
			AppURL:           strings.TrimRight(getenv("APP_URL", ""), "/"),
			Concurrency:      getint("WORKER_CONCURRENCY", 5),
		},

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
			ServiceName: getenv("OTEL_SERVICE_NAME", "daily-reflections-bot"),
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
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Source.BaseURL == "" {
		return cfg, errors.New("EXTERNAL_API must not be empty")
	}
	if cfg.Source.Timeout <= 0 || cfg.Discord.Timeout <= 0 {
		return cfg, errors.New("EXTERNAL_TIMEOUT and WEBHOOK_TIMEOUT must be positive durations")
	}
	if cfg.Discord.PublicKey != "" {
		if raw, err := hex.DecodeString(cfg.Discord.PublicKey); err != nil || len(raw) != 32 {
			return cfg, errors.New("DISCORD_PUBLIC_KEY must be a 64-character hex Ed25519 key")
		}
	}
	if strings.TrimSpace(cfg.Discord.WebhookPrefix) == "" {
		return cfg, errors.New("WEBHOOK_PREFIX must not be empty")
	}
	cfg.Discord.WebhookURLs = numberedList(cfg.Discord.WebhookPrefix)

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("DELIVERY_TIMEZONE: %w", err)
	}
	cfg.Schedule.Location = loc
	if cfg.Schedule.JitterMax < 0 {
		return cfg, errors.New("SCHEDULE_JITTER_MAX must be >= 0")
	}
	if cfg.Backfill.BatchSize < 1 {
		return cfg, errors.New("BACKFILL_BATCH_SIZE must be >= 1")
	}
	if cfg.Backfill.Delay < 0 {
		return cfg, errors.New("BACKFILL_DELAY must be >= 0")
	}
	if cfg.Worker.Concurrency < 1 {
		return cfg, errors.New("WORKER_CONCURRENCY must be >= 1")
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

// ---- env helpers ----
// An unset, empty or unparsable variable yields the default.

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func parsed[T any](k string, def T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if out, err := parse(v); err == nil {
		return out
	}
	return def
}

func getfloat(k string, def float64) float64 {
	return parsed(k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getint(k string, def int) int { return parsed(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return parsed(k, def, time.ParseDuration) }

func getbool(k string, def bool) bool {
	return parsed(k, def, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, strconv.ErrSyntax
	})
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

// numberedList reads PREFIX_1, PREFIX_2, ... and stops at the first unset
// or empty index.
func numberedList(prefix string) []string {
	var out []string
	for i := 1; ; i++ {
		v := strings.TrimSpace(os.Getenv(fmt.Sprintf("%s_%d", prefix, i)))
		if v == "" {
			return out
		}
		out = append(out, v)
	}
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
