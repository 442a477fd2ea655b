// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, OTP and throttling
// policies, SMS delivery, and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "vanish-chat-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// OTPConfig defines OTP issuance and verification policy.
type OTPConfig struct {
	CodeTTL         time.Duration // challenge lifetime
	CodeDigits      int           // zero-padded code width
	RequestWindow   time.Duration // issuance window
	MaxPerWindow    int           // max issues per window
	RequestCooldown time.Duration // spacing between issues
	MaxAttempts     int           // failed verifications per challenge
	DevMode         bool          // fixed code, no delivery (testing only)
	DevCode         string        // the fixed code used in dev mode
}

// ContactConfig defines contact-request throttling policy.
type ContactConfig struct {
	RequestWindow   time.Duration
	MaxPerWindow    int
	RequestCooldown time.Duration
}

// TwilioConfig carries SMS provider credentials. Empty values disable
// delivery; sends then report skipped.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
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
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath     string        // SQLite path
	AppSecret  string        // keys OTP hashes and session tokens; required
	SessionTTL time.Duration // validity of minted session credentials

	OTP     OTPConfig
	Contact ContactConfig
	Twilio  TwilioConfig

	// Ephemeral messages
	MessageGrace time.Duration // visibility window after first read
	MaxBodyRunes int           // message length cap

	// Edge rate limiting (process-local token bucket)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Background reclamation
	ReaperInterval  time.Duration // 0 disables the reaper
	ReaperRetention time.Duration // how long past-expiry rows are kept

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

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:     getenv("DB_PATH", "app.db"),
		AppSecret:  getenv("APP_SECRET", ""),
		SessionTTL: getdur("SESSION_TTL", 24*time.Hour),

		OTP: OTPConfig{
			CodeTTL:         getdur("OTP_TTL", 5*time.Minute),
			CodeDigits:      getint("OTP_DIGITS", 6),
			RequestWindow:   getdur("OTP_REQUEST_WINDOW", 10*time.Minute),
			MaxPerWindow:    getint("OTP_MAX_PER_WINDOW", 5),
			RequestCooldown: getdur("OTP_REQUEST_COOLDOWN", 60*time.Second),
			MaxAttempts:     getint("OTP_MAX_ATTEMPTS", 5),
			DevMode:         getbool("OTP_DEV_MODE", false),
			DevCode:         getenv("OTP_DEV_CODE", "123456"),
		},
		Contact: ContactConfig{
			RequestWindow:   getdur("CONTACT_REQUEST_WINDOW", 10*time.Minute),
			MaxPerWindow:    getint("CONTACT_MAX_PER_WINDOW", 8),
			RequestCooldown: getdur("CONTACT_REQUEST_COOLDOWN", 30*time.Second),
		},
		Twilio: TwilioConfig{
			AccountSID: getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getenv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getenv("TWILIO_FROM_NUMBER", ""),
		},

		// Ephemeral messages
		MessageGrace: getdur("MESSAGE_READ_GRACE", 30*time.Second),
		MaxBodyRunes: getint("MAX_BODY_RUNES", 4000),

		// Edge rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Background reclamation
		ReaperInterval:  getdur("REAPER_INTERVAL", 10*time.Minute),
		ReaperRetention: getdur("REAPER_RETENTION", time.Hour),

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
			ServiceName: getenv("OTEL_SERVICE_NAME", "vanish-chat-backend"),
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
	if strings.TrimSpace(cfg.AppSecret) == "" {
		return cfg, errors.New("APP_SECRET must not be empty")
	}
	if cfg.SessionTTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.OTP.CodeTTL <= 0 || cfg.OTP.RequestWindow <= 0 {
		return cfg, errors.New("OTP durations must be positive")
	}
	if cfg.OTP.CodeDigits < 4 || cfg.OTP.CodeDigits > 10 {
		return cfg, errors.New("OTP_DIGITS must be between 4 and 10")
	}
	if cfg.OTP.MaxPerWindow < 1 || cfg.OTP.MaxAttempts < 1 {
		return cfg, errors.New("OTP limits must be >= 1")
	}
	if cfg.Contact.RequestWindow <= 0 || cfg.Contact.MaxPerWindow < 1 {
		return cfg, errors.New("contact request policy must be positive")
	}
	if cfg.MessageGrace <= 0 {
		return cfg, errors.New("MESSAGE_READ_GRACE must be > 0")
	}
	if cfg.MaxBodyRunes < 1 {
		return cfg, errors.New("MAX_BODY_RUNES must be >= 1")
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

// normalizeBasePath ensures the base path starts with "/" and carries no
// trailing slash ("" and "/" both mean the root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
