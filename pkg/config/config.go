// Package config loads the agentdeck configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentdeck/agentdeck/pkg/errors"
)

// Default configuration values exported for documentation and validation
const (
	DefaultAPIBind        = "127.0.0.1:4680"
	DefaultStreamTimeout  = 60 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultInboxView      = "interrupted"
)

// Config represents the complete agentdeck configuration
type Config struct {
	Platform PlatformConfig `yaml:"platform"`
	Auth     AuthConfig     `yaml:"auth"`
	Inbox    InboxConfig    `yaml:"inbox"`
	Notify   NotifyConfig   `yaml:"notify"`
	Storage  StorageConfig  `yaml:"storage"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PlatformConfig points at the remote agent-orchestration backend.
type PlatformConfig struct {
	BaseURL        string        `yaml:"base_url"`
	StreamURL      string        `yaml:"stream_url"` // ws(s) endpoint; derived from base_url when empty
	RequestTimeout time.Duration `yaml:"request_timeout"`
	StreamTimeout  time.Duration `yaml:"stream_timeout"`
}

// AuthConfig carries the bearer credential for the platform.
type AuthConfig struct {
	APIKey string `yaml:"api_key"` // static key or JWT; AGENTDECK_API_KEY overrides
}

// InboxConfig selects which thread views the client shows.
type InboxConfig struct {
	DefaultView string   `yaml:"default_view"` // interrupted, idle, busy, error
	Workflows   []string `yaml:"workflows"`    // workflow (assistant) IDs to watch; empty = all
}

// NotifyConfig controls decision-outcome notifications.
type NotifyConfig struct {
	Terminal bool   `yaml:"terminal"`
	NATSURL  string `yaml:"nats_url"` // empty disables the NATS sink
	Subject  string `yaml:"subject"`
}

// StorageConfig locates the local insights cache.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// APIConfig configures the local headless API server.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
}

// LoggingConfig configures the structured event log.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults applied.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".agentdeck")
	return &Config{
		Platform: PlatformConfig{
			RequestTimeout: DefaultRequestTimeout,
			StreamTimeout:  DefaultStreamTimeout,
		},
		Inbox: InboxConfig{
			DefaultView: DefaultInboxView,
		},
		Notify: NotifyConfig{
			Terminal: true,
			Subject:  "agentdeck.notify",
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(base, "agentdeck.db"),
		},
		API: APIConfig{
			Bind: DefaultAPIBind,
		},
		Logging: LoggingConfig{
			Dir:   filepath.Join(base, "logs"),
			Level: "info",
		},
	}
}

// Load reads the config file at path, applies env overrides, and
// validates the result. A missing file yields defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrap(err, errors.ErrCodeConfigLoad, "read config file").
					WithContext("path", path)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigLoad, "parse config file").
				WithContext("path", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AGENTDECK_API_KEY"); v != "" {
		c.Auth.APIKey = v
	}
	if v := os.Getenv("AGENTDECK_BASE_URL"); v != "" {
		c.Platform.BaseURL = v
	}
	if v := os.Getenv("AGENTDECK_NATS_URL"); v != "" {
		c.Notify.NATSURL = v
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Platform.BaseURL == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "platform.base_url is required")
	}
	u, err := url.Parse(c.Platform.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New(errors.ErrCodeConfigInvalid, "platform.base_url must be an http(s) URL").
			WithContext("base_url", c.Platform.BaseURL)
	}
	if c.Platform.StreamURL != "" {
		su, err := url.Parse(c.Platform.StreamURL)
		if err != nil || (su.Scheme != "ws" && su.Scheme != "wss") {
			return errors.New(errors.ErrCodeConfigInvalid, "platform.stream_url must be a ws(s) URL").
				WithContext("stream_url", c.Platform.StreamURL)
		}
	}
	switch c.Inbox.DefaultView {
	case "interrupted", "idle", "busy", "error", "all":
	default:
		return errors.New(errors.ErrCodeConfigInvalid, "inbox.default_view must be one of interrupted, idle, busy, error, all").
			WithContext("default_view", c.Inbox.DefaultView)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrCodeConfigInvalid, "logging.level must be debug, info, warn or error").
			WithContext("level", c.Logging.Level)
	}
	return nil
}

// StreamEndpoint returns the websocket endpoint, deriving it from the
// base URL when stream_url is not set explicitly.
func (c *Config) StreamEndpoint() string {
	if c.Platform.StreamURL != "" {
		return c.Platform.StreamURL
	}
	derived := c.Platform.BaseURL
	derived = strings.Replace(derived, "https://", "wss://", 1)
	derived = strings.Replace(derived, "http://", "ws://", 1)
	return strings.TrimSuffix(derived, "/") + "/stream"
}

// DefaultPath returns the canonical config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agentdeck.yaml"
	}
	return filepath.Join(home, ".agentdeck", "config.yaml")
}

// Example returns a commented example configuration for `agentdeck init`.
func Example() string {
	return fmt.Sprintf(`# agentdeck configuration
platform:
  base_url: https://agents.example.com
  # stream_url: wss://agents.example.com/stream

auth:
  api_key: ""   # or set AGENTDECK_API_KEY

inbox:
  default_view: %s
  workflows: []

notify:
  terminal: true
  # nats_url: nats://localhost:4222

api:
  enabled: false
  bind: %s
`, DefaultInboxView, DefaultAPIBind)
}
