package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models sprintline.yml.
type Config struct {
	Remote struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"remote"`
	Poll struct {
		Interval string `yaml:"interval"`
	} `yaml:"poll"`
	Dashboard struct {
		Listen   string `yaml:"listen"`
		BasePath string `yaml:"base_path"`
	} `yaml:"dashboard"`
	Defaults struct {
		TaskCategory   string `yaml:"task_category"`
		SprintDuration int    `yaml:"sprint_duration"`
	} `yaml:"defaults"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	cfg, err := FromFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config %s not found; create one with sl init", path)
	}
	return cfg, err
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := FromFile(Path(workspace))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return cfg, err
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("config.remote.base_url is required")
	}
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.remote.base_url must be an absolute URL")
	}
	if c.Remote.Timeout != "" {
		if _, err := time.ParseDuration(c.Remote.Timeout); err != nil {
			return fmt.Errorf("config.remote.timeout: %w", err)
		}
	}
	if c.Poll.Interval != "" {
		d, err := time.ParseDuration(c.Poll.Interval)
		if err != nil {
			return fmt.Errorf("config.poll.interval: %w", err)
		}
		if d < time.Second {
			return fmt.Errorf("config.poll.interval must be at least 1s")
		}
	}
	switch c.Defaults.SprintDuration {
	case 0, 7, 14, 21, 28:
	default:
		return fmt.Errorf("config.defaults.sprint_duration must be one of 7, 14, 21, 28")
	}
	return nil
}

// PollInterval returns the configured poll cadence, or zero when unset so
// the scheduler falls back to its default.
func (c *Config) PollInterval() time.Duration {
	if c == nil || c.Poll.Interval == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Poll.Interval)
	return d
}

// RemoteTimeout returns the configured remote call timeout, or zero.
func (c *Config) RemoteTimeout() time.Duration {
	if c == nil || c.Remote.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Remote.Timeout)
	return d
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "sprintline.yml")
}

// Default returns the default Config for a remote base URL.
func Default(baseURL string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(GenerateDefault(baseURL)), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(baseURL string) string {
	return fmt.Sprintf(defaultTemplate, baseURL)
}

const defaultTemplate = `remote:
  base_url: %s
  token: ""
  timeout: 15s

poll:
  interval: 30s

dashboard:
  listen: 127.0.0.1:8594
  base_path: /v0

defaults:
  task_category: FE
  sprint_duration: 14
`
