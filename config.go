package opsgate

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/opsgate/service/limiter"
	"github.com/viant/opsgate/service/retrier"
	"github.com/viant/opsgate/service/tracker"
)

// Config is a serialisable representation of the engine configuration. It can
// be populated from JSON or YAML; the zero-value is useful because all nested
// fields inherit their package defaults.
type Config struct {
	Approval ApprovalConfig `json:"approval" yaml:"approval"`
	Tracker  tracker.Config `json:"tracker" yaml:"tracker"`
	Limiter  limiter.Config `json:"limiter" yaml:"limiter"`
	Retrier  retrier.Config `json:"retrier" yaml:"retrier"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
}

// ApprovalConfig holds approval registry settings.
type ApprovalConfig struct {
	TTL           time.Duration `json:"ttl" yaml:"ttl"`
	SweepInterval time.Duration `json:"sweepInterval" yaml:"sweepInterval"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName" yaml:"serviceName"`
	ServiceVersion string `json:"serviceVersion" yaml:"serviceVersion"`
	OutputFile     string `json:"outputFile" yaml:"outputFile"`
}

// DefaultConfig returns a Config populated with the same defaults the
// individual constructors apply. Callers may modify the returned struct
// before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		Approval: ApprovalConfig{
			TTL:           15 * time.Minute,
			SweepInterval: time.Minute,
		},
		Tracker: tracker.DefaultConfig(),
		Limiter: limiter.DefaultConfig(),
		Retrier: retrier.DefaultConfig(),
		Tracing: TracingConfig{
			ServiceName:    "opsgate",
			ServiceVersion: "dev",
		},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Approval.TTL <= 0 {
		return fmt.Errorf("approval.ttl must be > 0")
	}
	if c.Approval.SweepInterval <= 0 {
		return fmt.Errorf("approval.sweepInterval must be > 0")
	}
	if c.Tracker.TickInterval <= 0 {
		return fmt.Errorf("tracker.tickInterval must be > 0")
	}
	if c.Tracker.DefaultTimeout <= 0 {
		return fmt.Errorf("tracker.defaultTimeout must be > 0")
	}
	if c.Limiter.MaxConcurrent <= 0 {
		return fmt.Errorf("limiter.maxConcurrent must be > 0")
	}
	if c.Limiter.TokensPerSecond <= 0 {
		return fmt.Errorf("limiter.tokensPerSecond must be > 0")
	}
	// the retry executor treats a non-positive MaxRetries as unset and
	// falls back to its default, so zero would silently become three
	if c.Retrier.MaxRetries <= 0 {
		return fmt.Errorf("retrier.maxRetries must be > 0")
	}
	return nil
}

// LoadConfig reads a YAML configuration from URL. Any afs-supported scheme
// works: file paths, s3://, gs:// etc. Missing fields inherit defaults.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
