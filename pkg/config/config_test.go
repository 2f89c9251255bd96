package config

import (
	"os"
	"path/filepath"
	"testing"

	deckerrors "github.com/agentdeck/agentdeck/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
platform:
  base_url: https://agents.example.com
auth:
  api_key: test-key
inbox:
  default_view: idle
  workflows: [email-agent]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform.BaseURL != "https://agents.example.com" {
		t.Errorf("BaseURL = %q", cfg.Platform.BaseURL)
	}
	if cfg.Inbox.DefaultView != "idle" {
		t.Errorf("DefaultView = %q, want idle", cfg.Inbox.DefaultView)
	}
	if len(cfg.Inbox.Workflows) != 1 || cfg.Inbox.Workflows[0] != "email-agent" {
		t.Errorf("Workflows = %v", cfg.Inbox.Workflows)
	}
	// Defaults survive partial files.
	if cfg.API.Bind != DefaultAPIBind {
		t.Errorf("API.Bind = %q, want default %q", cfg.API.Bind, DefaultAPIBind)
	}
}

func TestLoadMissingBaseURL(t *testing.T) {
	path := writeConfig(t, `
auth:
  api_key: test-key
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load should fail without platform.base_url")
	}
	if !deckerrors.IsCode(err, deckerrors.ErrCodeConfigInvalid) {
		t.Errorf("error code = %v, want CONFIG_INVALID", deckerrors.GetCode(err))
	}
}

func TestLoadInvalidView(t *testing.T) {
	path := writeConfig(t, `
platform:
  base_url: https://agents.example.com
inbox:
  default_view: nonsense
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load should reject unknown inbox view")
	}
}

func TestLoadBadStreamURL(t *testing.T) {
	path := writeConfig(t, `
platform:
  base_url: https://agents.example.com
  stream_url: https://not-a-ws-url
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load should reject non-ws stream_url")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AGENTDECK_API_KEY", "env-key")
	t.Setenv("AGENTDECK_BASE_URL", "https://env.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Auth.APIKey)
	}
	if cfg.Platform.BaseURL != "https://env.example.com" {
		t.Errorf("BaseURL = %q, want env override", cfg.Platform.BaseURL)
	}
}

func TestStreamEndpointDerivation(t *testing.T) {
	tests := []struct {
		name      string
		baseURL   string
		streamURL string
		want      string
	}{
		{"explicit", "https://a.example.com", "wss://stream.example.com/run", "wss://stream.example.com/run"},
		{"derived-https", "https://a.example.com", "", "wss://a.example.com/stream"},
		{"derived-http", "http://localhost:2024", "", "ws://localhost:2024/stream"},
		{"trailing-slash", "https://a.example.com/", "", "wss://a.example.com/stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Platform.BaseURL = tt.baseURL
			cfg.Platform.StreamURL = tt.streamURL
			if got := cfg.StreamEndpoint(); got != tt.want {
				t.Errorf("StreamEndpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFileUsesDefaults(t *testing.T) {
	t.Setenv("AGENTDECK_BASE_URL", "https://env.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Inbox.DefaultView != DefaultInboxView {
		t.Errorf("DefaultView = %q, want %q", cfg.Inbox.DefaultView, DefaultInboxView)
	}
}
