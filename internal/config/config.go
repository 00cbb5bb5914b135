// Package config loads and validates the meetsync YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// Google configures the OAuth client and target calendar.
	Google GoogleConfig `yaml:"google"`

	// DBPath is the SQLite database file. Defaults to
	// ~/.local/share/meetsync/meetsync.db when unset.
	DBPath string `yaml:"db_path"`

	// WindowDays is the span of the reconciliation window, starting today.
	// Minimum 1, maximum 365. Defaults to 30.
	WindowDays int `yaml:"window_days"`

	// Timezone is the IANA zone used when composing event timestamps
	// (e.g. "Europe/Berlin"). Defaults to the system zone.
	Timezone string `yaml:"timezone"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// GoogleConfig holds the Google Calendar OAuth settings.
type GoogleConfig struct {
	// ClientID and ClientSecret identify the OAuth application. Create them
	// in the Google Cloud console with the Calendar API enabled.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// CalendarID selects the calendar to sync against. Defaults to
	// "primary".
	CalendarID string `yaml:"calendar_id"`

	// RedirectURL receives the OAuth authorization code. Defaults to the
	// out-of-band flow where the code is pasted into the terminal.
	RedirectURL string `yaml:"redirect_url"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "meetsync".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Equivalent to the OTEL_EXPORTER_OTLP_HEADERS environment
	// variable. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/meetsync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "meetsync", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// validate checks that all required fields are present and well-formed.
func (c *Config) validate() error {
	if c.Google.ClientID == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if c.Google.ClientSecret == "" {
		return fmt.Errorf("google.client_secret is required")
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = "primary"
	}

	if c.WindowDays == 0 {
		c.WindowDays = 30
	}
	if c.WindowDays < 1 {
		return fmt.Errorf("window_days %d must be at least 1", c.WindowDays)
	}
	if c.WindowDays > 365 {
		return fmt.Errorf("window_days %d is too large (maximum 365)", c.WindowDays)
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone %q is not a valid IANA zone", c.Timezone)
		}
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
