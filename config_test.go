package khata

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "https base url",
			mutate:    func(c *Config) { c.BaseURL = "https://api.boikhata.test/api/v1" },
			wantValid: true,
		},
		{
			name:      "base url without scheme",
			mutate:    func(c *Config) { c.BaseURL = "api.boikhata.test" },
			wantValid: false,
		},
		{
			name:      "base url with query",
			mutate:    func(c *Config) { c.BaseURL = "https://api.boikhata.test/?x=1" },
			wantValid: false,
		},
		{
			name:      "relative refresh path",
			mutate:    func(c *Config) { c.Auth.RefreshPath = "auth/refresh-token" },
			wantValid: false,
		},
		{
			name:      "logout path optional",
			mutate:    func(c *Config) { c.Auth.LogoutPath = "" },
			wantValid: true,
		},
		{
			name:      "token scheme with spaces",
			mutate:    func(c *Config) { c.Auth.TokenScheme = "Bearer token" },
			wantValid: false,
		},
		{
			name:      "namespace with colon",
			mutate:    func(c *Config) { c.Session.Namespace = "a:b" },
			wantValid: false,
		},
		{
			name:      "negative warn after",
			mutate:    func(c *Config) { c.Session.RehydrationWarnAfter = -time.Second },
			wantValid: false,
		},
		{
			name: "rate limit without burst",
			mutate: func(c *Config) {
				c.Transport.RateLimit = 5
				c.Transport.Burst = 0
			},
			wantValid: false,
		},
		{
			name:      "zero response cap",
			mutate:    func(c *Config) { c.Transport.MaxResponseBytes = 0 },
			wantValid: false,
		},
		{
			name: "notifications without buffer",
			mutate: func(c *Config) {
				c.Notifications.Enabled = true
				c.Notifications.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name:      "file driver without dir",
			mutate:    func(c *Config) { c.Storage.Driver = StorageFile },
			wantValid: false,
		},
		{
			name: "redis driver with addr",
			mutate: func(c *Config) {
				c.Storage.Driver = StorageRedis
				c.Storage.RedisAddr = "127.0.0.1:6379"
			},
			wantValid: true,
		},
		{
			name:      "unknown driver",
			mutate:    func(c *Config) { c.Storage.Driver = "sqlite" },
			wantValid: false,
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Log.Level = "loud" },
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boikhata.yaml")
	content := []byte(`
baseurl: https://shop.boikhata.test/api/v1
auth:
  tokenscheme: Bearer
session:
  rehydrationwarnafter: 2s
storage:
  driver: file
  dir: /tmp/boikhata
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("BOIKHATA_TRANSPORT_TIMEOUT", "3s")
	t.Setenv("BOIKHATA_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.BaseURL != "https://shop.boikhata.test/api/v1" {
		t.Fatalf("unexpected base url %q", cfg.BaseURL)
	}
	if cfg.Auth.TokenScheme != "Bearer" {
		t.Fatalf("unexpected token scheme %q", cfg.Auth.TokenScheme)
	}
	if cfg.Auth.RefreshPath != "/auth/refresh-token" {
		t.Fatalf("expected default refresh path, got %q", cfg.Auth.RefreshPath)
	}
	if cfg.Session.RehydrationWarnAfter != 2*time.Second {
		t.Fatalf("unexpected warn after %s", cfg.Session.RehydrationWarnAfter)
	}
	if cfg.Transport.Timeout != 3*time.Second {
		t.Fatalf("expected env override of timeout, got %s", cfg.Transport.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected env override of log level, got %q", cfg.Log.Level)
	}
	if cfg.Storage.Driver != StorageFile || cfg.Storage.Dir != "/tmp/boikhata" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("BOIKHATA_STORAGE_DRIVER", "sqlite")
	dir := t.TempDir()
	path := filepath.Join(dir, "boikhata.yaml")
	if err := os.WriteFile(path, []byte("baseurl: http://localhost:5000/api/v1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}
