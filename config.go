package khata

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config is the complete client configuration. Build validates it once; it is treated as
// immutable afterwards.
type Config struct {
	// BaseURL is the backend API root, for example https://shop.example.com/api/v1.
	BaseURL       string
	Auth          AuthConfig
	Session       SessionConfig
	Transport     TransportConfig
	Notifications NotificationConfig
	Metrics       MetricsConfig
	Storage       StorageConfig
	Log           LogConfig
}

// AuthConfig names the backend authentication endpoints.
type AuthConfig struct {
	LoginPath   string
	RefreshPath string
	// LogoutPath is optional; when empty Logout only clears local state.
	LogoutPath string
	// TokenScheme prefixes the token in the Authorization header. Empty sends the raw token.
	TokenScheme string
}

// SessionConfig controls session persistence.
type SessionConfig struct {
	// Namespace prefixes every storage key, so several clients can share one backend.
	Namespace            string
	RehydrationWarnAfter time.Duration
	PersistTimeout       time.Duration
}

// TransportConfig controls outbound HTTP behavior.
type TransportConfig struct {
	Timeout time.Duration
	// RateLimit is the outbound request rate per second; zero disables throttling.
	RateLimit        float64
	Burst            int
	UserAgent        string
	MaxResponseBytes int64
}

// NotificationConfig controls asynchronous notification delivery.
type NotificationConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// StorageConfig selects the durable backend used when the builder is not given one.
type StorageConfig struct {
	// Driver is one of "memory", "file" or "redis".
	Driver        string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	RedisTTL      time.Duration
}

// LogConfig controls the logger built by NewLogger.
type LogConfig struct {
	Level  string
	Pretty bool
}

const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// DefaultConfig returns the configuration matching the Boi Khata backend routes.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:5000/api/v1",
		Auth: AuthConfig{
			LoginPath:   "/auth/login",
			RefreshPath: "/auth/refresh-token",
			LogoutPath:  "",
			TokenScheme: "",
		},
		Session: SessionConfig{
			Namespace:            "boikhata",
			RehydrationWarnAfter: 5 * time.Second,
			PersistTimeout:       5 * time.Second,
		},
		Transport: TransportConfig{
			Timeout:          15 * time.Second,
			RateLimit:        0,
			Burst:            1,
			UserAgent:        "boikhata-client",
			MaxResponseBytes: 4 << 20,
		},
		Notifications: NotificationConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Storage: StorageConfig{
			Driver:      StorageMemory,
			RedisPrefix: "boikhata",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	// Base URL
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("BaseURL is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("BaseURL scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("BaseURL must include a host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return errors.New("BaseURL must not carry a query or fragment")
	}

	// Auth
	if !strings.HasPrefix(c.Auth.LoginPath, "/") {
		return errors.New("Auth LoginPath must start with /")
	}
	if !strings.HasPrefix(c.Auth.RefreshPath, "/") {
		return errors.New("Auth RefreshPath must start with /")
	}
	if c.Auth.LogoutPath != "" && !strings.HasPrefix(c.Auth.LogoutPath, "/") {
		return errors.New("Auth LogoutPath must start with /")
	}
	if strings.ContainsAny(c.Auth.TokenScheme, " \t\r\n") {
		return errors.New("Auth TokenScheme must be a single word")
	}

	// Session
	if c.Session.RehydrationWarnAfter < 0 {
		return errors.New("Session RehydrationWarnAfter must be >= 0")
	}
	if c.Session.PersistTimeout < 0 {
		return errors.New("Session PersistTimeout must be >= 0")
	}
	if strings.Contains(c.Session.Namespace, ":") {
		return errors.New("Session Namespace must not contain ':'")
	}

	// Transport
	if c.Transport.Timeout < 0 {
		return errors.New("Transport Timeout must be >= 0")
	}
	if c.Transport.RateLimit < 0 {
		return errors.New("Transport RateLimit must be >= 0")
	}
	if c.Transport.RateLimit > 0 && c.Transport.Burst < 1 {
		return errors.New("Transport Burst must be >= 1 when RateLimit is set")
	}
	if c.Transport.MaxResponseBytes <= 0 {
		return errors.New("Transport MaxResponseBytes must be > 0")
	}

	// Notifications
	if c.Notifications.Enabled && c.Notifications.BufferSize <= 0 {
		return errors.New("Notifications BufferSize must be > 0 when enabled")
	}

	// Storage
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageFile:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return errors.New("Storage Dir is required for the file driver")
		}
	case StorageRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return errors.New("Storage RedisAddr is required for the redis driver")
		}
		if c.Storage.RedisDB < 0 {
			return errors.New("Storage RedisDB must be >= 0")
		}
		if c.Storage.RedisTTL < 0 {
			return errors.New("Storage RedisTTL must be >= 0")
		}
	default:
		return fmt.Errorf("Storage Driver %q is not supported", c.Storage.Driver)
	}

	// Log
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("Log Level is invalid: %w", err)
	}

	return nil
}
