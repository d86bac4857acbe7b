// Package config provides configuration parsing and validation for pinger.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postalsys/pinger/internal/icmp"
	"github.com/postalsys/pinger/internal/logging"
	"github.com/postalsys/pinger/internal/session"
)

// Config represents the complete pinger configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Probe   ProbeConfig   `yaml:"probe"`
	Session SessionConfig `yaml:"session"`
	Health  HealthConfig  `yaml:"health"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ProbeConfig holds per-probe socket parameters.
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	TTL     int           `yaml:"ttl"`
	Size    int           `yaml:"size"`
	// Pattern is a hex string tiled over the payload, e.g. "abcdef".
	Pattern string `yaml:"pattern"`
}

// SessionConfig controls repeated probing.
type SessionConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Count is the number of probes per session. Zero runs until stopped.
	Count int `yaml:"count"`
}

// HealthConfig defines health check server settings.
type HealthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// MaxSessions caps concurrent websocket ping sessions. Zero means no cap.
	MaxSessions int `yaml:"max_sessions"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config with default values.
func Default() *Config {
	probe := icmp.DefaultConfig()

	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Probe: ProbeConfig{
			Timeout: probe.Timeout,
			TTL:     probe.TTL,
			Size:    probe.Size,
		},
		Session: SessionConfig{
			Interval: time.Second,
			Count:    0,
		},
		Health: HealthConfig{
			Enabled:      false,
			Address:      "127.0.0.1:8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			MaxSessions:  64,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes. Omitted fields keep their
// defaults.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
// ${VAR:-default} falls back to default; unknown variables are left as is.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors. All problems are reported
// at once.
func (c *Config) Validate() error {
	var errs []string

	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level))
	}
	if !logging.ValidFormat(c.Logging.Format) {
		errs = append(errs, fmt.Sprintf("invalid logging.format: %s (must be text or json)", c.Logging.Format))
	}

	if c.Probe.Timeout < 0 {
		errs = append(errs, "probe.timeout must not be negative")
	}
	if c.Probe.Timeout%time.Millisecond != 0 {
		errs = append(errs, "probe.timeout must be a whole number of milliseconds")
	}
	if c.Probe.TTL < 1 || c.Probe.TTL > 255 {
		errs = append(errs, "probe.ttl must be between 1 and 255")
	}
	if c.Probe.Size < 0 || c.Probe.Size > icmp.MaxPayloadSize {
		errs = append(errs, fmt.Sprintf("probe.size must be between 0 and %d", icmp.MaxPayloadSize))
	}
	if _, err := icmp.ParsePattern(c.Probe.Pattern); err != nil {
		errs = append(errs, fmt.Sprintf("probe.pattern: %v", err))
	}

	if c.Session.Interval < 0 {
		errs = append(errs, "session.interval must not be negative")
	}
	if c.Session.Count < 0 {
		errs = append(errs, "session.count must not be negative")
	}

	if c.Health.Enabled {
		if c.Health.Address == "" {
			errs = append(errs, "health.address is required when enabled")
		} else if _, _, err := net.SplitHostPort(c.Health.Address); err != nil {
			errs = append(errs, fmt.Sprintf("health.address: %v", err))
		}
	}
	if c.Health.MaxSessions < 0 {
		errs = append(errs, "health.max_sessions must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ProbeParams returns the probe section as icmp parameters.
// The pattern is assumed valid (Validate checks it).
func (c *Config) ProbeParams() icmp.Config {
	pattern, _ := icmp.ParsePattern(c.Probe.Pattern)
	return icmp.Config{
		Timeout: c.Probe.Timeout,
		TTL:     c.Probe.TTL,
		Size:    c.Probe.Size,
		Pattern: pattern,
	}
}

// SessionOptions returns session options for probing host.
func (c *Config) SessionOptions(host string) session.Options {
	p := c.ProbeParams()
	return session.Options{
		Host:     host,
		Timeout:  p.Timeout,
		Interval: c.Session.Interval,
		TTL:      p.TTL,
		Size:     p.Size,
		Pattern:  p.Pattern,
		Count:    c.Session.Count,
	}
}

// String returns the configuration as YAML.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
