// Package config loads process settings from the environment.
//
// A .env file in the working directory is read first when present. Variables
// already set in the real environment always take precedence over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownTimeout = 10 * time.Second
	defaultRequestMaxBytes = 1 << 20 // 1 MB
	defaultOTLPProtocol    = "grpc"
	defaultSampler         = "parentbased_always_on"
	defaultSamplerArg      = "1.0"
)

// Config is the resolved process configuration.
type Config struct {
	Port               string
	LogLevel           string
	ShutdownTimeout    time.Duration
	RequestMaxBytes    int64
	CORSAllowedOrigins []string
	MetricsEnabled     bool
	// ProjectID is the Google Cloud project used to build Cloud Trace log fields.
	ProjectID string
	Tracing   Tracing
}

// Tracing holds OpenTelemetry exporter settings. Export is disabled when
// both endpoints are empty.
type Tracing struct {
	// Endpoint is OTEL_EXPORTER_OTLP_ENDPOINT, the base URL shared by all signals.
	Endpoint string
	// TracesEndpoint is OTEL_EXPORTER_OTLP_TRACES_ENDPOINT, used as the full traces URL.
	TracesEndpoint string
	Protocol       string
	Sampler        string
	SamplerArg     string
}

// Enabled reports whether a trace exporter endpoint is configured.
func (t Tracing) Enabled() bool {
	return t.Endpoint != "" || t.TracesEndpoint != ""
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// Load reads configuration from the environment after applying envFiles
// (".env" when none are given). Missing env files are ignored.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Port:               getEnv("PORT", defaultPort),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ProjectID: firstNonEmpty(
			os.Getenv("GOOGLE_CLOUD_PROJECT"),
			os.Getenv("FIREBASE_PROJECT_ID"),
			os.Getenv("GCP_PROJECT"),
			os.Getenv("GCLOUD_PROJECT"),
			os.Getenv("PROJECT_ID"),
		),
		Tracing: Tracing{
			Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			TracesEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
			Protocol:       getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", defaultOTLPProtocol),
			Sampler:        getEnv("OTEL_TRACES_SAMPLER", defaultSampler),
			SamplerArg:     getEnv("OTEL_TRACES_SAMPLER_ARG", defaultSamplerArg),
		},
	}

	if err := validatePort(cfg.Port); err != nil {
		return Config{}, err
	}

	var err error
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", cfg.ShutdownTimeout)
	}
	if cfg.RequestMaxBytes, err = getEnvInt64("REQUEST_MAX_BYTES", defaultRequestMaxBytes); err != nil {
		return Config{}, err
	}
	if cfg.RequestMaxBytes <= 0 {
		return Config{}, fmt.Errorf("REQUEST_MAX_BYTES must be positive, got %d", cfg.RequestMaxBytes)
	}
	if cfg.MetricsEnabled, err = getEnvBool("METRICS_ENABLED", true); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", port)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: invalid boolean %q: %w", key, v, err)
	}
	return b, nil
}

func getEnvInt64(key string, def int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return i, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
