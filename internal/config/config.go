package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models growit.yml.
type Config struct {
	App struct {
		Curriculum string `yaml:"curriculum"`
		Language   string `yaml:"language"`
	} `yaml:"app"`
	Server struct {
		Addr           string   `yaml:"addr"`
		JWTSecret      string   `yaml:"jwt_secret"`
		TokenTTLHours  int      `yaml:"token_ttl_hours"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Analytics struct {
		BaseURL  string `yaml:"base_url"`
		SpoolDir string `yaml:"spool_dir"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"analytics"`
	Forwarder struct {
		Hooks []ForwarderHook `yaml:"hooks"`
	} `yaml:"forwarder"`
}

// ForwarderHook is a downstream sink for collected events.
type ForwarderHook struct {
	Name      string   `yaml:"name"`
	URL       string   `yaml:"url"`
	Events    []string `yaml:"events"`
	BatchSize int      `yaml:"batch_size"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "growit.yml")
}

// LoadOptional returns defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.App.Curriculum = "figma-basics"
	cfg.App.Language = "en"
	cfg.Server.Addr = "127.0.0.1:8000"
	cfg.Server.TokenTTLHours = 24 * 7
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Analytics.SpoolDir = "bronze/app"
	return &cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.App.Curriculum == "" {
		return fmt.Errorf("config.app.curriculum is required")
	}
	if c.App.Language == "" {
		return fmt.Errorf("config.app.language is required")
	}
	if c.Server.TokenTTLHours <= 0 {
		return fmt.Errorf("config.server.token_ttl_hours must be positive")
	}
	if c.Analytics.BaseURL != "" {
		u, err := url.Parse(c.Analytics.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("config.analytics.base_url must be an http(s) URL")
		}
	}
	seen := map[string]bool{}
	for _, h := range c.Forwarder.Hooks {
		if h.Name == "" {
			return fmt.Errorf("config.forwarder.hooks entry missing name")
		}
		if seen[h.Name] {
			return fmt.Errorf("config.forwarder.hooks has duplicate name %s", h.Name)
		}
		seen[h.Name] = true
		if !strings.HasPrefix(h.URL, "http://") && !strings.HasPrefix(h.URL, "https://") {
			return fmt.Errorf("hook %s url must be an http(s) URL", h.Name)
		}
		if h.BatchSize < 0 {
			return fmt.Errorf("hook %s batch_size must not be negative", h.Name)
		}
	}
	return nil
}
