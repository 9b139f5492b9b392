// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the record store, the intake pipeline,
// rate limiting, and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-waitlist-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // OTEL_DEPLOYMENT_ENVIRONMENT (optional)
}

// Record store drivers.
const (
	DriverREST     = "rest"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Rate limit counter backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
)

// StoreConfig selects and configures the waitlist record store.
type StoreConfig struct {
	Driver string // STORE_DRIVER: rest|sqlite|postgres

	// rest
	URL        string // SUPABASE_URL or STORE_URL
	ServiceKey string // SUPABASE_SERVICE_KEY or STORE_SERVICE_KEY
	Table      string // STORE_TABLE

	// sqlite
	DBPath string // DB_PATH

	// postgres
	DatabaseURL     string        // DATABASE_URL
	ConnectAttempts int           // DB_CONNECT_ATTEMPTS
	ConnectDelay    time.Duration // DB_CONNECT_DELAY
}

// Configured reports whether the selected driver has what it needs to
// connect. An unconfigured REST store is not a startup error: submissions
// fail with a configuration error until credentials are supplied.
func (s StoreConfig) Configured() bool {
	switch s.Driver {
	case DriverREST:
		return s.URL != "" && s.ServiceKey != ""
	case DriverSQLite:
		return s.DBPath != ""
	case DriverPostgres:
		return s.DatabaseURL != ""
	}
	return false
}

// IntakeConfig tunes the subscription pipeline.
type IntakeConfig struct {
	RateMax               int           // INTAKE_RATE_MAX: submissions per window per source
	RateWindow            time.Duration // INTAKE_RATE_WINDOW
	RateBackend           string        // RATE_LIMIT_BACKEND: memory|sql
	MinFillTime           time.Duration // MIN_FILL_TIME: faster form fills are treated as bots
	PersistTimeout        time.Duration // PERSIST_TIMEOUT per record-store call
	Source                string        // WAITLIST_SOURCE tag stored with each entry
	DisposableDomainsFile string        // DISPOSABLE_DOMAINS_FILE extends the built-in denylist
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
	LogRedact      bool   // scrub PII from access logs

	// App
	Store  StoreConfig
	Intake IntakeConfig

	// Edge rate limiting (token bucket per client IP)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS                  CORSConfig
	Security              SecurityConfig
	TrustForwardedHeaders bool     // take the client IP from X-Forwarded-For / X-Real-IP
	TrustedProxies        []string // gin trusted proxies, used when TrustForwardedHeaders is off
	MaxBodyBytes          int64    // request body cap

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
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/")),
		LogRedact:      getbool("LOG_REDACT", true),

		// App
		Store: StoreConfig{
			Driver:          strings.ToLower(strings.TrimSpace(getenv("STORE_DRIVER", DriverREST))),
			URL:             strings.TrimRight(strings.TrimSpace(getenvAny("", "SUPABASE_URL", "STORE_URL")), "/"),
			ServiceKey:      strings.TrimSpace(getenvAny("", "SUPABASE_SERVICE_KEY", "STORE_SERVICE_KEY")),
			Table:           getenv("STORE_TABLE", "waitlist"),
			DBPath:          getenv("DB_PATH", "waitlist.db"),
			DatabaseURL:     getenv("DATABASE_URL", ""),
			ConnectAttempts: getint("DB_CONNECT_ATTEMPTS", 5),
			ConnectDelay:    getdur("DB_CONNECT_DELAY", time.Second),
		},
		Intake: IntakeConfig{
			RateMax:               getint("INTAKE_RATE_MAX", 3),
			RateWindow:            getdur("INTAKE_RATE_WINDOW", time.Minute),
			RateBackend:           strings.ToLower(strings.TrimSpace(getenv("RATE_LIMIT_BACKEND", BackendMemory))),
			MinFillTime:           getdur("MIN_FILL_TIME", 2*time.Second),
			PersistTimeout:        getdur("PERSIST_TIMEOUT", 8*time.Second),
			Source:                getenv("WAITLIST_SOURCE", "landing_page"),
			DisposableDomainsFile: getenv("DISPOSABLE_DOMAINS_FILE", ""),
		},

		// Edge rate limiting
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
		TrustForwardedHeaders: getbool("TRUST_FORWARDED_HEADERS", true),
		TrustedProxies:        splitCSV(getenv("TRUSTED_PROXIES", "")),
		MaxBodyBytes:          int64(getint("MAX_BODY_BYTES", 16<<10)),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-waitlist-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Environment: getenv("OTEL_DEPLOYMENT_ENVIRONMENT", ""),
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
	switch cfg.Store.Driver {
	case DriverREST:
	case DriverSQLite:
		if strings.TrimSpace(cfg.Store.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.Store.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
		if cfg.Store.ConnectAttempts < 1 {
			return cfg, errors.New("DB_CONNECT_ATTEMPTS must be >= 1")
		}
	default:
		return cfg, errors.New("STORE_DRIVER must be one of: rest, sqlite, postgres")
	}
	if strings.TrimSpace(cfg.Store.Table) == "" {
		return cfg, errors.New("STORE_TABLE must not be empty")
	}
	if cfg.Intake.RateMax < 1 {
		return cfg, errors.New("INTAKE_RATE_MAX must be >= 1")
	}
	if cfg.Intake.RateWindow <= 0 {
		return cfg, errors.New("INTAKE_RATE_WINDOW must be > 0")
	}
	switch cfg.Intake.RateBackend {
	case BackendMemory:
	case BackendSQL:
		if cfg.Store.Driver == DriverREST {
			return cfg, errors.New("RATE_LIMIT_BACKEND=sql requires STORE_DRIVER=sqlite or postgres")
		}
	default:
		return cfg, errors.New("RATE_LIMIT_BACKEND must be one of: memory, sql")
	}
	if cfg.Intake.MinFillTime < 0 {
		return cfg, errors.New("MIN_FILL_TIME must be >= 0")
	}
	if cfg.Intake.PersistTimeout <= 0 {
		return cfg, errors.New("PERSIST_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.Intake.Source) == "" {
		return cfg, errors.New("WAITLIST_SOURCE must not be empty")
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
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
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

// getenvAny returns the first non-empty value among keys.
func getenvAny(def string, keys ...string) string {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			return v
		}
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
