package config

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/querycache/auth"
	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/credential"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/transport"
)

// Prefix is prepended to every variable name.
const Prefix = "QUERYCACHE_"

// Config holds client settings.
type Config struct {
	BaseURL   string `env:"BASE_URL"`
	Endpoints string `env:"ENDPOINTS" envDefault:"endpoints.yaml"`

	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	RetryAttempts    int           `env:"RETRY_ATTEMPTS" envDefault:"1"`
	RetryBackoff     time.Duration `env:"RETRY_BACKOFF" envDefault:"200ms"`
	BreakerThreshold int           `env:"BREAKER_THRESHOLD"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN" envDefault:"30s"`

	StaleTime      time.Duration `env:"STALE_TIME" envDefault:"60s"`
	GracePeriod    time.Duration `env:"GRACE_PERIOD" envDefault:"60s"`
	MaxGracePeriod time.Duration `env:"MAX_GRACE_PERIOD" envDefault:"1h"`
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT"`

	DiagnosticHeader string `env:"DIAGNOSTIC_HEADER" envDefault:"ngrok-skip-browser-warning"`
	DiagnosticValue  string `env:"DIAGNOSTIC_VALUE" envDefault:"true"`

	AccessKey         string `env:"ACCESS_KEY" envDefault:"access"`
	RefreshKey        string `env:"REFRESH_KEY" envDefault:"refresh"`
	CredentialBackend string `env:"CREDENTIAL_BACKEND" envDefault:"sqlite"`
	CredentialPath    string `env:"CREDENTIAL_PATH" envDefault:"${HOME}/.querycache/credentials.db"`

	ServiceName     string  `env:"SERVICE_NAME" envDefault:"querycache"`
	LogLevel        string  `env:"LOG_LEVEL" envDefault:"info"`
	TracingExporter string  `env:"TRACING_EXPORTER" envDefault:"none"`
	MetricsExporter string  `env:"METRICS_EXPORTER" envDefault:"none"`
	SamplePct       float64 `env:"SAMPLE_PCT" envDefault:"1"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads the configuration from environ instead of the process
// environment. Keys carry the QUERYCACHE_ prefix.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"REQUEST_TIMEOUT", c.RequestTimeout},
		{"RETRY_BACKOFF", c.RetryBackoff},
		{"BREAKER_COOLDOWN", c.BreakerCooldown},
		{"STALE_TIME", c.StaleTime},
		{"GRACE_PERIOD", c.GracePeriod},
		{"MAX_GRACE_PERIOD", c.MaxGracePeriod},
		{"FETCH_TIMEOUT", c.FetchTimeout},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("%w: %s%s=%s", ErrInvalidDuration, Prefix, d.name, d.d)
		}
	}

	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidRetry, c.RetryAttempts)
	}
	if c.BreakerThreshold < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBreaker, c.BreakerThreshold)
	}
	if !slices.Contains(credential.DefaultRegistry.List(), c.CredentialBackend) {
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.CredentialBackend)
	}

	obs := c.Observe(nil)
	return obs.Validate()
}

// Policy returns the cache policy.
func (c *Config) Policy() cache.Policy {
	return cache.Policy{
		StaleTime:      c.StaleTime,
		GracePeriod:    c.GracePeriod,
		MaxGracePeriod: c.MaxGracePeriod,
		FetchTimeout:   c.FetchTimeout,
	}
}

// Resilience returns the HTTP adapter delivery policies.
func (c *Config) Resilience() transport.ResilienceConfig {
	return transport.ResilienceConfig{
		Timeout:          c.RequestTimeout,
		RetryAttempts:    c.RetryAttempts,
		RetryBackoff:     c.RetryBackoff,
		BreakerThreshold: c.BreakerThreshold,
		BreakerCooldown:  c.BreakerCooldown,
	}
}

// Auth returns the auth middleware settings.
func (c *Config) Auth() auth.MiddlewareConfig {
	return auth.MiddlewareConfig{
		CredentialKey:          c.AccessKey,
		RefreshKey:             c.RefreshKey,
		DiagnosticHeader:       c.DiagnosticHeader,
		DiagnosticValue:        c.DiagnosticValue,
		ClearOnUnauthenticated: true,
	}
}

// Credential returns the backend name and factory options for
// credential.DefaultRegistry.Create.
func (c *Config) Credential() (string, map[string]any) {
	switch c.CredentialBackend {
	case "sqlite":
		return c.CredentialBackend, map[string]any{"path": c.CredentialPath}
	default:
		return c.CredentialBackend, nil
	}
}

// Observe returns the observability settings. Exporters named "none" are
// disabled; logging is always on.
func (c *Config) Observe(output io.Writer) observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   enabled(c.TracingExporter),
			Exporter:  c.TracingExporter,
			SamplePct: c.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  enabled(c.MetricsExporter),
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
		Output: output,
	}
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != "none"
}
