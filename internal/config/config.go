// Package config provides configuration management for cron-sentry.
// It uses koanf v2 to load an optional YAML file holding the defaults for
// an installation, typically the DSN and the extra fields every report of
// the host should carry. Command-line flags override the file.
//
// Example /etc/cron-sentry.yaml:
//
//	dsn: https://public@sentry.example.com/42
//	max_message_length: 4000
//	report_stderr: true
//	extra:
//	  team: infra
package config

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default values for optional settings.
const (
	DefaultMaxMessageLength = 4096
	DefaultLogLevel         = "warn"
	DefaultReportTimeout    = 10
	DefaultReportRetries    = 2
)

// Log targets.
const (
	LogTargetStderr  = "stderr"
	LogTargetJournal = "journal"
)

// Config holds the settings for one run.
type Config struct {
	// DSN is the reporting endpoint: a Sentry DSN or nats://host:port/subject.
	DSN string `koanf:"dsn"`

	// MaxMessageLength bounds the stdout and stderr excerpts. Default: 4096.
	MaxMessageLength int `koanf:"max_message_length"`

	// Quiet suppresses forwarding of the command's output to the console.
	Quiet bool `koanf:"quiet"`

	// ReportAll reports every run regardless of exit status.
	ReportAll bool `koanf:"report_all"`

	// ReportStderr also reports successful runs that wrote to stderr.
	ReportStderr bool `koanf:"report_stderr"`

	// LogLevel controls the verbosity of cron-sentry's own logging.
	// Valid values: "debug", "info", "warn", "error". Default: "warn".
	LogLevel string `koanf:"log_level"`

	// LogTarget is "stderr" (default) or "journal".
	LogTarget string `koanf:"log_target"`

	// Environment and Release are attached to Sentry events.
	Environment string `koanf:"environment"`
	Release     string `koanf:"release"`

	// Extra holds key/value pairs added to every report.
	Extra map[string]string `koanf:"extra"`

	// ReportTimeout is the per-attempt timeout in seconds. Default: 10.
	ReportTimeout int `koanf:"report_timeout"`

	// ReportRetries is the number of retries after a failed submission.
	// Default: 2. Zero disables retries.
	ReportRetries int `koanf:"report_retries"`

	// NATSNKeySeed authenticates nats:// DSNs.
	NATSNKeySeed string `koanf:"nats_nkey_seed"`
}

// Validation errors returned by Validate.
var (
	ErrDSNRequired          = errors.New("dsn is required")
	ErrInvalidMessageLength = errors.New("max_message_length must be at least 4")
	ErrInvalidLogTarget     = errors.New("log_target must be stderr or journal")
	ErrInvalidReportTimeout = errors.New("report_timeout must be positive")
	ErrInvalidRetries       = errors.New("report_retries must not be negative")
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		MaxMessageLength: DefaultMaxMessageLength,
		LogLevel:         DefaultLogLevel,
		LogTarget:        LogTargetStderr,
		ReportTimeout:    DefaultReportTimeout,
		ReportRetries:    DefaultReportRetries,
		Extra:            map[string]string{},
	}
}

// Load reads configuration from the specified YAML file path.
// An empty path returns the defaults. Missing optional fields get defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	k := koanf.New(".")

	// Load YAML file
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults(k)
	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields.
// Retries keep an explicit zero from the file.
func (c *Config) applyDefaults(k *koanf.Koanf) {
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = DefaultMaxMessageLength
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogTarget == "" {
		c.LogTarget = LogTargetStderr
	}
	if c.ReportTimeout == 0 {
		c.ReportTimeout = DefaultReportTimeout
	}
	if !k.Exists("report_retries") {
		c.ReportRetries = DefaultReportRetries
	}
	if c.Extra == nil {
		c.Extra = map[string]string{}
	}
}

// Validate checks the merged configuration before anything is launched.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return ErrDSNRequired
	}
	if c.MaxMessageLength < 4 {
		return ErrInvalidMessageLength
	}
	if c.LogTarget != LogTargetStderr && c.LogTarget != LogTargetJournal {
		return ErrInvalidLogTarget
	}
	if c.ReportTimeout <= 0 {
		return ErrInvalidReportTimeout
	}
	if c.ReportRetries < 0 {
		return ErrInvalidRetries
	}
	return nil
}
