// Package config provides configuration file support for PropSync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/propsync/propsync/pkg/errclass"
	"github.com/propsync/propsync/pkg/model"
)

// Duration wraps time.Duration with YAML support for "30s"-style strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the PropSync configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Lock    LockConfig    `yaml:"lock"`
	Retry   RetryConfig   `yaml:"retry"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig locates the shared database and the marker file beside it.
type StoreConfig struct {
	// Path is the shared SQLite database, typically on a LAN drive.
	Path string `yaml:"path"`

	// MarkerPath overrides the advisory marker location. Empty means
	// "<path>.lock".
	MarkerPath string `yaml:"marker_path,omitempty"`
}

// Marker returns the effective marker file path.
func (s StoreConfig) Marker() string {
	if s.MarkerPath != "" {
		return s.MarkerPath
	}
	return s.Path + ".lock"
}

// LockConfig holds the two externally tunable arbitration parameters plus
// the read-only retry cadence.
type LockConfig struct {
	StalenessTimeout  Duration `yaml:"staleness_timeout"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	PollInterval      Duration `yaml:"poll_interval"`
}

// RetryConfig bounds the arbiter's internal retries on transient store errors.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Backoff     Duration `yaml:"backoff"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// Default returns the default configuration: 10 minute staleness timeout,
// 30 second heartbeat.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "propsync.db",
		},
		Lock: LockConfig{
			StalenessTimeout:  Duration(10 * time.Minute),
			HeartbeatInterval: Duration(30 * time.Second),
			PollInterval:      Duration(15 * time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			Backoff:     Duration(500 * time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("parse config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the tunables. The heartbeat interval must stay below the
// staleness timeout; both must share sane, positive values.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errclass.ErrConfigInvalid.WithMessage("store.path must not be empty")
	}
	if c.Retry.MaxAttempts < 1 {
		return errclass.ErrConfigInvalid.WithMessage("retry.max_attempts must be at least 1")
	}
	if c.Retry.Backoff.Std() < 0 {
		return errclass.ErrConfigInvalid.WithMessage("retry.backoff must not be negative")
	}
	return c.LockPolicy().Validate()
}

// LockPolicy converts the lock section to a model.LockPolicy.
func (c *Config) LockPolicy() model.LockPolicy {
	return model.LockPolicy{
		StalenessTimeout:  c.Lock.StalenessTimeout.Std(),
		HeartbeatInterval: c.Lock.HeartbeatInterval.Std(),
		PollInterval:      c.Lock.PollInterval.Std(),
	}
}
