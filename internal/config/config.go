// Package config defines service configuration and how it is loaded.
//
// Conventions:
//   - New returns a Config holding the defaults.
//   - Load layers a YAML file and STAFFMATCH_* env vars over the defaults.
//   - Every failure wraps ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CachePostgres = "postgres"
)

// Candidate data sources.
const (
	SourceHTTP = "http"
	SourceFile = "file"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WorkerCount bounds concurrent candidate evaluations per computation.
	WorkerCount int `koanf:"worker_count"`

	// ShardCount configures the number of shards in the in-memory cache.
	ShardCount int `koanf:"shard_count"`

	// CacheBackend is memory or postgres.
	CacheBackend string `koanf:"cache_backend"`

	// DatabaseURL is the PostgreSQL DSN used by the postgres cache backend.
	DatabaseURL string `koanf:"database_url"`

	// SourceKind is http or file.
	SourceKind string `koanf:"source_kind"`

	// SourceBaseURL is the scheduling/consultant service root for the http source.
	SourceBaseURL string `koanf:"source_base_url"`

	// SourceTimeoutMS bounds each upstream HTTP attempt.
	SourceTimeoutMS int `koanf:"source_timeout_ms"`

	// SourceRetries is the number of retries after a failed upstream attempt.
	SourceRetries int `koanf:"source_retries"`

	// FixturesPath is the YAML fixture file for the file source.
	FixturesPath string `koanf:"fixtures_path"`

	// EMRFamilies adds EMR system names, mapped to a system or family they
	// belong with, e.g. "millennium": "cerner" puts Millennium in the Oracle
	// Health family.
	EMRFamilies map[string]string `koanf:"emr_families"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		WorkerCount:     runtime.NumCPU() * 4,
		ShardCount:      32,
		CacheBackend:    CacheMemory,
		SourceKind:      SourceHTTP,
		SourceBaseURL:   "http://localhost:8081",
		SourceTimeoutMS: 5000,
		SourceRetries:   2,
	}
}

// SourceTimeout returns SourceTimeoutMS as a duration.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutMS) * time.Millisecond
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.ShardCount <= 0:
		return fmt.Errorf("%w: shard_count must be positive, got %d", ErrInvalidConfig, c.ShardCount)
	case c.SourceTimeoutMS <= 0:
		return fmt.Errorf("%w: source_timeout_ms must be positive, got %d", ErrInvalidConfig, c.SourceTimeoutMS)
	case c.SourceRetries < 0:
		return fmt.Errorf("%w: source_retries must not be negative, got %d", ErrInvalidConfig, c.SourceRetries)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}

	switch c.CacheBackend {
	case CacheMemory:
	case CachePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for the postgres cache", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache_backend %q", ErrInvalidConfig, c.CacheBackend)
	}

	switch c.SourceKind {
	case SourceHTTP:
		u, err := url.Parse(c.SourceBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: source_base_url must be an absolute URL, got %q", ErrInvalidConfig, c.SourceBaseURL)
		}
	case SourceFile:
		if c.FixturesPath == "" {
			return fmt.Errorf("%w: fixtures_path is required for the file source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source_kind %q", ErrInvalidConfig, c.SourceKind)
	}
	return nil
}
