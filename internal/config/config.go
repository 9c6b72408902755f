// Package config loads and saves the safebridge configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Push transports.
const (
	TransportWebsocket = "websocket"
	TransportNATS      = "nats"
	TransportNone      = "none"
)

const (
	dirName  = ".safebridge"
	fileName = "config.yaml"
)

// Config represents the safebridge configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Timeout  TimeoutConfig  `yaml:"timeout"`
	Retry    RetryConfig    `yaml:"retry"`
	Backend  BackendConfig  `yaml:"backend"`
	Push     PushConfig     `yaml:"push"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DispatchConfig controls the automatic dispatch loop.
type DispatchConfig struct {
	AutoDial          bool          `yaml:"auto_dial"`
	InterAttemptDelay time.Duration `yaml:"inter_attempt_delay"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	DialPacing        time.Duration `yaml:"dial_pacing"` // Minimum spacing of outbound dials; 0 disables
	DialBurst         int           `yaml:"dial_burst"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// TimeoutConfig is the acceptance call timeout policy.
type TimeoutConfig struct {
	CharsPerSecond int           `yaml:"chars_per_second"`
	NarrationMin   time.Duration `yaml:"narration_min"`
	NarrationMax   time.Duration `yaml:"narration_max"`
	ResponseWindow time.Duration `yaml:"response_window"`
	Min            time.Duration `yaml:"min"`
	Max            time.Duration `yaml:"max"`
}

// RetryConfig bounds retries of collaborator calls.
type RetryConfig struct {
	DialAttempts          int           `yaml:"dial_attempts"`
	DialInterval          time.Duration `yaml:"dial_interval"`
	SearchAttempts        int           `yaml:"search_attempts"`
	SearchInterval        time.Duration `yaml:"search_interval"`
	SessionLookupAttempts int           `yaml:"session_lookup_attempts"`
	SessionLookupInterval time.Duration `yaml:"session_lookup_interval"`
}

// BackendConfig points at the dispatch backend.
// An empty URL selects the local store and the mock ARS.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	MockARS bool          `yaml:"mock_ars"`
	Fixture string        `yaml:"fixture,omitempty"` // Candidate file used instead of the search endpoint
}

// PushConfig selects the real-time channel.
type PushConfig struct {
	Transport    string `yaml:"transport"` // websocket | nats | none
	WebsocketURL string `yaml:"websocket_url,omitempty"`
	NATSURL      string `yaml:"nats_url,omitempty"`
	Subject      string `yaml:"subject,omitempty"` // NATS subject prefix
}

// StorageConfig locates the local database.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"` // Empty means ~/.safebridge/safebridge.db
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"` // Empty disables the endpoint
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Dispatch: DispatchConfig{
			AutoDial:          true,
			InterAttemptDelay: 10 * time.Second,
			PollInterval:      2 * time.Second,
			DialBurst:         1,
			ReconcileInterval: 30 * time.Second,
		},
		Timeout: TimeoutConfig{
			CharsPerSecond: 3,
			NarrationMin:   30 * time.Second,
			NarrationMax:   90 * time.Second,
			ResponseWindow: 60 * time.Second,
			Min:            90 * time.Second,
			Max:            180 * time.Second,
		},
		Retry: RetryConfig{
			DialAttempts:          3,
			DialInterval:          2 * time.Second,
			SearchAttempts:        3,
			SearchInterval:        time.Second,
			SessionLookupAttempts: 5,
			SessionLookupInterval: time.Second,
		},
		Backend: BackendConfig{
			Timeout: 10 * time.Second,
		},
		Push: PushConfig{
			Transport: TransportWebsocket,
			Subject:   "safebridge.cases",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the config file location under dir.
func Path(dir string) string {
	return filepath.Join(dir, dirName, fileName)
}

// LoadConfig reads .safebridge/config.yaml from the specified directory over
// the defaults. A missing file yields the defaults.
func LoadConfig(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(dir))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes config.yaml to directory
func SaveConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Join(dir, dirName), 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", dirName, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Push.Transport {
	case TransportWebsocket, TransportNATS, TransportNone:
	default:
		return fmt.Errorf("invalid push transport %q (want websocket, nats or none)", c.Push.Transport)
	}
	if c.Push.Transport == TransportNATS && c.Push.NATSURL == "" {
		return fmt.Errorf("push transport nats requires push.nats_url")
	}
	if c.Timeout.Min > c.Timeout.Max && c.Timeout.Max > 0 {
		return fmt.Errorf("timeout.min (%s) exceeds timeout.max (%s)", c.Timeout.Min, c.Timeout.Max)
	}
	if c.Dispatch.PollInterval <= 0 {
		return fmt.Errorf("dispatch.poll_interval must be positive")
	}
	if c.Retry.DialAttempts < 1 || c.Retry.SearchAttempts < 1 || c.Retry.SessionLookupAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	return nil
}

// Offline reports whether no backend is configured.
func (c *Config) Offline() bool {
	return c.Backend.URL == ""
}
