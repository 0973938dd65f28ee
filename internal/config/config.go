// Package config provides YAML-based configuration loading for Beacon.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Beacon configuration, loaded from beacon.yaml.
type Config struct {
	AppID          string          `yaml:"app_id"`
	AppPassword    string          `yaml:"app_password"`
	RecipientsFile string          `yaml:"recipients_file"`
	Port           int             `yaml:"port"`
	LogLevel       string          `yaml:"log_level"`
	Connector      ConnectorConfig `yaml:"connector"`
	Auth           AuthConfig      `yaml:"auth"`
	Dispatch       DispatchConfig  `yaml:"dispatch"`
}

// ConnectorConfig holds Bot Framework connector endpoints. The defaults are
// the public Bot Framework cloud; sovereign clouds override them.
type ConnectorConfig struct {
	TokenURL string `yaml:"token_url"`
	Scope    string `yaml:"scope"`
}

// AuthConfig controls inbound webhook token checking.
type AuthConfig struct {
	// Disabled skips Authorization checks on /api/messages. Local emulator
	// runs only; never disable this against real traffic.
	Disabled bool `yaml:"disabled"`
}

// DispatchConfig tunes notification fan-out.
type DispatchConfig struct {
	Workers int `yaml:"workers"`
}

// envAppPassword overrides the YAML app password when set, keeping the
// secret out of the config file.
const envAppPassword = "BEACON_APP_PASSWORD"

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if v := os.Getenv(envAppPassword); v != "" {
		c.AppPassword = v
	}
	if c.RecipientsFile == "" {
		c.RecipientsFile = "recipients.json"
	}
	if c.Port == 0 {
		c.Port = 3978
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Dispatch.Workers == 0 {
		c.Dispatch.Workers = 4
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.AppID == "" && !c.Auth.Disabled {
		errs = append(errs, "app_id is required unless auth.disabled is set")
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d is out of range", c.Port))
	}
	if c.Dispatch.Workers < 0 {
		errs = append(errs, "dispatch.workers must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
