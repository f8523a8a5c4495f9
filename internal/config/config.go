// Package config loads the agenda service configuration. koanf merges an
// optional YAML file with environment variables; environment wins.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration values for the API server and the backfill
// command. Empty provider credentials disable the capability instead of
// failing validation.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Catalog storage
	Store       string `koanf:"store"`
	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"`

	// Embeddings and extraction
	EmbeddingProvider string `koanf:"embedding_provider"`
	EmbeddingModel    string `koanf:"embedding_model"`
	OpenAIAPIKey      string `koanf:"openai_api_key"`
	OpenAIBaseURL     string `koanf:"openai_base_url"`
	ExtractionModel   string `koanf:"extraction_model"`
	OllamaURL         string `koanf:"ollama_url"`

	// Web search
	TavilyAPIKey          string `koanf:"tavily_api_key"`
	SearchLocaleQualifier string `koanf:"search_locale_qualifier"`

	// Geocoding
	NominatimURL     string `koanf:"nominatim_url"`
	GeocodeUserAgent string `koanf:"geocode_user_agent"`
	PrimaryCity      string `koanf:"primary_city"`

	// Extraction context archive (S3-compatible, e.g. R2)
	ArchiveBucket          string `koanf:"archive_bucket"`
	ArchiveEndpoint        string `koanf:"archive_endpoint"`
	ArchiveAccessKeyID     string `koanf:"archive_access_key_id"`
	ArchiveSecretAccessKey string `koanf:"archive_secret_access_key"`

	// Ranking
	RankingCalibrationPath string `koanf:"ranking_calibration_path"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`

	// HTTP edge
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
	RateLimitPerMinute int      `koanf:"rate_limit_per_minute"`

	// cmd/backfill
	BackfillSchedule string `koanf:"backfill_schedule"`
	BackfillLimit    int    `koanf:"backfill_limit"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL            = errors.New("DATABASE_URL is required when STORE is postgres")
	ErrInvalidStore                  = errors.New("STORE must be postgres or memory")
	ErrInvalidEmbeddingProvider      = errors.New("EMBEDDING_PROVIDER must be openai or ollama")
	ErrMissingArchiveBucket          = errors.New("ARCHIVE_BUCKET is required")
	ErrMissingArchiveEndpoint        = errors.New("ARCHIVE_ENDPOINT is required")
	ErrMissingArchiveAccessKeyID     = errors.New("ARCHIVE_ACCESS_KEY_ID is required")
	ErrMissingArchiveSecretAccessKey = errors.New("ARCHIVE_SECRET_ACCESS_KEY is required")
	ErrInvalidSampleRate             = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidRateLimit              = errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	ErrInvalidPort                   = errors.New("PORT must be a valid integer")
	ErrInvalidNumber                 = errors.New("value must be a valid number")
	ErrInvalidBackfillLimit          = errors.New("BACKFILL_LIMIT must be positive")
)

// Default values for non-secret configuration.
const (
	DefaultPort                  = 8080
	DefaultEnv                   = "development"
	DefaultStore                 = StorePostgres
	DefaultEmbeddingProvider     = "openai"
	DefaultSearchLocaleQualifier = "eventos Lima Perú"
	DefaultNominatimURL          = "https://nominatim.openstreetmap.org"
	DefaultGeocodeUserAgent      = "agenda-lima/1.0"
	DefaultPrimaryCity           = "Lima"
	DefaultTracingExporter       = "otlp-http"
	DefaultTracingSampleRate     = 0.1
	DefaultRateLimitPerMinute    = 30
	DefaultBackfillLimit         = 50
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	intValue := func(envKey, koanfKey string, def int, sentinel error) int {
		v, err := getEnvIntOrDefault(envKey, k.Int(koanfKey), def)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("%s: %w", envKey, sentinel))
		}
		return v
	}

	port := intValue("PORT", "port", DefaultPort, ErrInvalidPort)
	rateLimit := intValue("RATE_LIMIT_PER_MINUTE", "rate_limit_per_minute", DefaultRateLimitPerMinute, ErrInvalidNumber)
	backfillLimit := intValue("BACKFILL_LIMIT", "backfill_limit", DefaultBackfillLimit, ErrInvalidNumber)

	sampleRate := DefaultTracingSampleRate
	if k.Exists("tracing_sample_rate") {
		sampleRate = k.Float64("tracing_sample_rate")
	}
	if val := os.Getenv("TRACING_SAMPLE_RATE"); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("TRACING_SAMPLE_RATE: %w", ErrInvalidNumber))
		} else {
			sampleRate = f
		}
	}

	origins := k.Strings("cors_allowed_origins")
	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		origins = splitList(val)
	}

	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"AGENDA_ENV", "ENV"}, k.String("env"), DefaultEnv),
		Store:                  strings.ToLower(getEnvOrDefault("STORE", k.String("store"), DefaultStore)),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		EmbeddingProvider:      strings.ToLower(getEnvOrDefault("EMBEDDING_PROVIDER", k.String("embedding_provider"), DefaultEmbeddingProvider)),
		EmbeddingModel:         getEnvOrKoanf("EMBEDDING_MODEL", k, "embedding_model"),
		OpenAIAPIKey:           getEnvOrKoanf("OPENAI_API_KEY", k, "openai_api_key"),
		OpenAIBaseURL:          getEnvOrKoanf("OPENAI_BASE_URL", k, "openai_base_url"),
		ExtractionModel:        getEnvOrKoanf("EXTRACTION_MODEL", k, "extraction_model"),
		OllamaURL:              getEnvOrKoanf("OLLAMA_URL", k, "ollama_url"),
		TavilyAPIKey:           getEnvOrKoanf("TAVILY_API_KEY", k, "tavily_api_key"),
		SearchLocaleQualifier:  getEnvOrDefault("SEARCH_LOCALE_QUALIFIER", k.String("search_locale_qualifier"), DefaultSearchLocaleQualifier),
		NominatimURL:           getEnvOrDefault("NOMINATIM_URL", k.String("nominatim_url"), DefaultNominatimURL),
		GeocodeUserAgent:       getEnvOrDefault("GEOCODE_USER_AGENT", k.String("geocode_user_agent"), DefaultGeocodeUserAgent),
		PrimaryCity:            getEnvOrDefault("PRIMARY_CITY", k.String("primary_city"), DefaultPrimaryCity),
		ArchiveBucket:          getEnvOrKoanf("ARCHIVE_BUCKET", k, "archive_bucket"),
		ArchiveEndpoint:        getEnvOrKoanf("ARCHIVE_ENDPOINT", k, "archive_endpoint"),
		ArchiveAccessKeyID:     getEnvOrKoanf("ARCHIVE_ACCESS_KEY_ID", k, "archive_access_key_id"),
		ArchiveSecretAccessKey: getEnvOrKoanf("ARCHIVE_SECRET_ACCESS_KEY", k, "archive_secret_access_key"),
		RankingCalibrationPath: getEnvOrKoanf("RANKING_CALIBRATION_PATH", k, "ranking_calibration_path"),
		TracingEnabled:         getEnvBool("TRACING_ENABLED", k.Bool("tracing_enabled")),
		TracingExporter:        getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		OTLPEndpoint:           getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		TracingSampleRate:      sampleRate,
		TracingInsecure:        getEnvBool("TRACING_INSECURE", k.Bool("tracing_insecure")),
		CORSAllowedOrigins:     origins,
		RateLimitPerMinute:     rateLimit,
		BackfillSchedule:       getEnvOrKoanf("BACKFILL_SCHEDULE", k, "backfill_schedule"),
		BackfillLimit:          backfillLimit,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// A zero koanf value falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return defaultVal, err
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBool parses common boolean spellings; unrecognized values keep fallback.
func getEnvBool(envKey string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(envKey)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for inconsistent values.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	case StoreMemory:
	default:
		errs = append(errs, ErrInvalidStore)
	}

	if c.EmbeddingProvider != "openai" && c.EmbeddingProvider != "ollama" {
		errs = append(errs, ErrInvalidEmbeddingProvider)
	}

	// The archive is optional. Only validate fields if any archive value is set.
	if c.ArchiveBucket != "" || c.ArchiveEndpoint != "" ||
		c.ArchiveAccessKeyID != "" || c.ArchiveSecretAccessKey != "" {
		if c.ArchiveBucket == "" {
			errs = append(errs, ErrMissingArchiveBucket)
		}
		if c.ArchiveEndpoint == "" {
			errs = append(errs, ErrMissingArchiveEndpoint)
		}
		if c.ArchiveAccessKeyID == "" {
			errs = append(errs, ErrMissingArchiveAccessKeyID)
		}
		if c.ArchiveSecretAccessKey == "" {
			errs = append(errs, ErrMissingArchiveSecretAccessKey)
		}
	}

	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.BackfillLimit <= 0 {
		errs = append(errs, ErrInvalidBackfillLimit)
	}

	return errs
}

// ArchiveEnabled reports whether every archive setting is present.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != "" && c.ArchiveEndpoint != "" &&
		c.ArchiveAccessKeyID != "" && c.ArchiveSecretAccessKey != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                      strconv.Itoa(c.Port),
		"env":                       c.Env,
		"store":                     c.Store,
		"database_url":              maskURL(c.DatabaseURL),
		"redis_url":                 maskURL(c.RedisURL),
		"embedding_provider":        c.EmbeddingProvider,
		"embedding_model":           c.EmbeddingModel,
		"openai_api_key":            maskSecret(c.OpenAIAPIKey),
		"openai_base_url":           c.OpenAIBaseURL,
		"extraction_model":          c.ExtractionModel,
		"ollama_url":                c.OllamaURL,
		"tavily_api_key":            maskSecret(c.TavilyAPIKey),
		"search_locale_qualifier":   c.SearchLocaleQualifier,
		"nominatim_url":             c.NominatimURL,
		"geocode_user_agent":        c.GeocodeUserAgent,
		"primary_city":              c.PrimaryCity,
		"archive_bucket":            c.ArchiveBucket,
		"archive_endpoint":          c.ArchiveEndpoint,
		"archive_access_key_id":     maskSecret(c.ArchiveAccessKeyID),
		"archive_secret_access_key": maskSecret(c.ArchiveSecretAccessKey),
		"ranking_calibration_path":  c.RankingCalibrationPath,
		"tracing_enabled":           strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":          c.TracingExporter,
		"otlp_endpoint":             c.OTLPEndpoint,
		"tracing_sample_rate":       strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
		"cors_allowed_origins":      strings.Join(c.CORSAllowedOrigins, ","),
		"rate_limit_per_minute":     strconv.Itoa(c.RateLimitPerMinute),
		"backfill_schedule":         c.BackfillSchedule,
		"backfill_limit":            strconv.Itoa(c.BackfillLimit),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskURL masks the password in a connection URL such as postgres:// or redis://.
func maskURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	return s[:schemeEnd+3] + rest[:colonIndex] + ":****" + rest[atIndex:]
}
