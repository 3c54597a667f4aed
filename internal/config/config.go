// Package config loads and validates collector settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the root configuration for the collector and reporter binaries.
// Zero values are filled from Default, so a partial file only overrides the
// keys it mentions.
type Settings struct {
	HTTP   HTTPSettings   `yaml:"http"`
	Retry  RetrySettings  `yaml:"retry"`
	Ingest IngestSettings `yaml:"ingest"`
	Sinks  SinkSettings   `yaml:"sinks"`
	Report ReportSettings `yaml:"report"`
}

// HTTPSettings controls the outbound HTTP client.
type HTTPSettings struct {
	Timeout   string `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"`
}

// RetrySettings controls retry behavior for transient fetch failures.
type RetrySettings struct {
	MaxAttempts    int    `yaml:"max_attempts"`
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
}

// IngestSettings controls job scheduling.
type IngestSettings struct {
	Concurrency int                          `yaml:"concurrency"`
	RateLimits  map[string]RateLimitSettings `yaml:"rate_limits"`
}

// RateLimitSettings is a per-provider request rate cap.
type RateLimitSettings struct {
	PerSec float64 `yaml:"per_sec"`
	Burst  int     `yaml:"burst"`
}

// SinkSettings says where ingested observations land.
type SinkSettings struct {
	DBPath string `yaml:"db_path"`
	CSVDir string `yaml:"csv_dir"`
}

// ReportSettings controls the reporter binary.
type ReportSettings struct {
	SalesCSV string `yaml:"sales_csv"`
	OutDir   string `yaml:"out_dir"`
	Seed     int64  `yaml:"seed"`
}

// Default returns the settings used when no config file is given.
func Default() Settings {
	return Settings{
		HTTP: HTTPSettings{
			Timeout:   "30s",
			UserAgent: "econharvest/0.1 (economic data collector)",
		},
		Retry: RetrySettings{
			MaxAttempts:    3,
			InitialBackoff: "500ms",
			MaxBackoff:     "8s",
		},
		Ingest: IngestSettings{
			Concurrency: 4,
			RateLimits: map[string]RateLimitSettings{
				"BLS":  {PerSec: 2, Burst: 2},
				"FRED": {PerSec: 4, Burst: 4},
			},
		},
		Sinks: SinkSettings{
			DBPath: "econharvest.db",
			CSVDir: "data/raw",
		},
		Report: ReportSettings{
			SalesCSV: "data/raw/sales_data.csv",
			OutDir:   "data/processed",
			Seed:     42,
		},
	}
}

// Load reads a YAML settings file over the defaults and validates the result.
func Load(path string) (Settings, error) {
	settings := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse config file: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// Validate checks that all fields parse and fall in sane ranges.
func (s Settings) Validate() error {
	timeout, err := time.ParseDuration(s.HTTP.Timeout)
	if err != nil {
		return fmt.Errorf("http.timeout must be a valid duration (e.g. '30s'): %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", s.HTTP.Timeout)
	}

	if s.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", s.Retry.MaxAttempts)
	}
	initial, err := time.ParseDuration(s.Retry.InitialBackoff)
	if err != nil {
		return fmt.Errorf("retry.initial_backoff must be a valid duration (e.g. '500ms'): %w", err)
	}
	if initial <= 0 {
		return fmt.Errorf("retry.initial_backoff must be positive, got %s", s.Retry.InitialBackoff)
	}
	maxBackoff, err := time.ParseDuration(s.Retry.MaxBackoff)
	if err != nil {
		return fmt.Errorf("retry.max_backoff must be a valid duration (e.g. '8s'): %w", err)
	}
	if maxBackoff < initial {
		return fmt.Errorf("retry.max_backoff must be at least retry.initial_backoff, got %s < %s",
			s.Retry.MaxBackoff, s.Retry.InitialBackoff)
	}

	if s.Ingest.Concurrency < 1 {
		return fmt.Errorf("ingest.concurrency must be at least 1, got %d", s.Ingest.Concurrency)
	}
	for provider, limit := range s.Ingest.RateLimits {
		if limit.PerSec <= 0 {
			return fmt.Errorf("ingest.rate_limits.%s.per_sec must be positive, got %v", provider, limit.PerSec)
		}
		if limit.Burst < 1 {
			return fmt.Errorf("ingest.rate_limits.%s.burst must be at least 1, got %d", provider, limit.Burst)
		}
	}

	if s.Sinks.DBPath == "" {
		return fmt.Errorf("sinks.db_path is required")
	}
	if s.Sinks.CSVDir == "" {
		return fmt.Errorf("sinks.csv_dir is required")
	}
	if s.Report.SalesCSV == "" {
		return fmt.Errorf("report.sales_csv is required")
	}
	if s.Report.OutDir == "" {
		return fmt.Errorf("report.out_dir is required")
	}
	return nil
}

// HTTPTimeout returns the parsed HTTP timeout. Call Validate first.
func (s Settings) HTTPTimeout() time.Duration {
	d, _ := time.ParseDuration(s.HTTP.Timeout)
	return d
}

// InitialBackoff returns the parsed initial retry delay. Call Validate first.
func (s Settings) InitialBackoff() time.Duration {
	d, _ := time.ParseDuration(s.Retry.InitialBackoff)
	return d
}

// MaxBackoff returns the parsed backoff ceiling. Call Validate first.
func (s Settings) MaxBackoff() time.Duration {
	d, _ := time.ParseDuration(s.Retry.MaxBackoff)
	return d
}
