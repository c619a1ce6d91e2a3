package carebook

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
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
	validKey := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name: "redis backend valid",
			mutate: func(c *Config) {
				c.Session.Backend = BackendRedis
			},
			wantValid: true,
		},
		{
			name: "redis backend without prefix invalid",
			mutate: func(c *Config) {
				c.Session.Backend = BackendRedis
				c.Redis.Prefix = " "
			},
			wantValid: false,
		},
		{
			name: "redis backend without id cookie invalid",
			mutate: func(c *Config) {
				c.Session.Backend = BackendRedis
				c.Session.IDCookie = ""
			},
			wantValid: false,
		},
		{
			name: "unknown backend invalid",
			mutate: func(c *Config) {
				c.Session.Backend = "localstorage"
			},
			wantValid: false,
		},
		{
			name: "zero session ttl invalid",
			mutate: func(c *Config) {
				c.Session.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "relative cookie path invalid",
			mutate: func(c *Config) {
				c.Session.CookiePath = "app"
			},
			wantValid: false,
		},
		{
			name: "cookie prefix with separator invalid",
			mutate: func(c *Config) {
				c.Session.CookiePrefix = "cb;"
			},
			wantValid: false,
		},
		{
			name: "lax same site valid",
			mutate: func(c *Config) {
				c.Session.CookieSameSite = "Lax"
			},
			wantValid: true,
		},
		{
			name: "unknown same site invalid",
			mutate: func(c *Config) {
				c.Session.CookieSameSite = "none"
			},
			wantValid: false,
		},
		{
			name: "seal key valid",
			mutate: func(c *Config) {
				c.Session.SealKey = validKey
			},
			wantValid: true,
		},
		{
			name: "seal key wrong length invalid",
			mutate: func(c *Config) {
				c.Session.SealKey = base64.StdEncoding.EncodeToString([]byte("short"))
			},
			wantValid: false,
		},
		{
			name: "seal key not base64 invalid",
			mutate: func(c *Config) {
				c.Session.SealKey = "!!!"
			},
			wantValid: false,
		},
		{
			name: "api base url relative invalid",
			mutate: func(c *Config) {
				c.API.BaseURL = "/api/v1"
			},
			wantValid: false,
		},
		{
			name: "api base url ftp invalid",
			mutate: func(c *Config) {
				c.API.BaseURL = "ftp://example.com/api"
			},
			wantValid: false,
		},
		{
			name: "api attempts zero invalid",
			mutate: func(c *Config) {
				c.API.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "api single attempt valid",
			mutate: func(c *Config) {
				c.API.MaxAttempts = 1
			},
			wantValid: true,
		},
		{
			name: "api max interval below initial invalid",
			mutate: func(c *Config) {
				c.API.MaxInterval = time.Second
			},
			wantValid: false,
		},
		{
			name: "jwt leeway too large invalid",
			mutate: func(c *Config) {
				c.API.JWTLeeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "internal fetch header only valid",
			mutate: func(c *Config) {
				c.InternalFetch.QueryParam = ""
			},
			wantValid: true,
		},
		{
			name: "internal fetch without markers invalid",
			mutate: func(c *Config) {
				c.InternalFetch.QueryParam = ""
				c.InternalFetch.Header = ""
			},
			wantValid: false,
		},
		{
			name: "json log format valid",
			mutate: func(c *Config) {
				c.Log.Format = "JSON"
			},
			wantValid: true,
		},
		{
			name: "unknown log format invalid",
			mutate: func(c *Config) {
				c.Log.Format = "xml"
			},
			wantValid: false,
		},
		{
			name: "unknown log level invalid",
			mutate: func(c *Config) {
				c.Log.Level = "verbose"
			},
			wantValid: false,
		},
		{
			name: "metrics path relative invalid",
			mutate: func(c *Config) {
				c.Metrics.Path = "metrics"
			},
			wantValid: false,
		},
		{
			name: "metrics disabled ignores path",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.Path = ""
			},
			wantValid: true,
		},
		{
			name: "otel enabled valid",
			mutate: func(c *Config) {
				c.Metrics.OTel.Enabled = true
			},
			wantValid: true,
		},
		{
			name: "otel zero interval invalid",
			mutate: func(c *Config) {
				c.Metrics.OTel.Enabled = true
				c.Metrics.OTel.Interval = 0
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "login throttle enabled valid",
			mutate: func(c *Config) {
				c.LoginThrottle.Enabled = true
			},
			wantValid: true,
		},
		{
			name: "login throttle without attempts invalid",
			mutate: func(c *Config) {
				c.LoginThrottle.Enabled = true
				c.LoginThrottle.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "login throttle zero window invalid",
			mutate: func(c *Config) {
				c.LoginThrottle.Enabled = true
				c.LoginThrottle.Window = 0
			},
			wantValid: false,
		},
		{
			name: "shutdown timeout zero invalid",
			mutate: func(c *Config) {
				c.Server.ShutdownTimeout = 0
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestValidateStubAPI(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateStubAPI(); err == nil {
		t.Fatal("expected missing secret to be rejected")
	}
	cfg.StubAPI.Secret = "0123456789abcdef"
	if err := cfg.ValidateStubAPI(); err != nil {
		t.Fatalf("expected valid stub config, got %v", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyed := DefaultConfig()
	keyed.StubAPI.SigningKey = base64.StdEncoding.EncodeToString(priv)
	if err := keyed.ValidateStubAPI(); err != nil {
		t.Fatalf("expected signing key to replace the secret, got %v", err)
	}
	if key, err := keyed.StubAPI.SigningKeyBytes(); err != nil || !key.Equal(priv) {
		t.Fatalf("expected signing key to decode, got %v", err)
	}
	keyed.StubAPI.SigningKey = base64.StdEncoding.EncodeToString([]byte("short"))
	if err := keyed.ValidateStubAPI(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for a malformed signing key, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"CAREBOOK_ADDR":             ":8081",
		"CAREBOOK_SESSION_BACKEND":  "REDIS",
		"CAREBOOK_REDIS_DB":         "3",
		"CAREBOOK_COOKIE_SECURE":    "false",
		"CAREBOOK_API_TIMEOUT":      "5s",
		"CAREBOOK_API_BASE_URL":     "http://localhost:4000/api/v1",
		"CAREBOOK_LOG_LEVEL":        "  debug ",
		"CAREBOOK_STUB_SEED_DEMO":   "true",
		"CAREBOOK_API_MAX_ATTEMPTS": "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := applyEnv(&cfg, lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.Server.Addr != ":8081" {
		t.Fatalf("expected addr :8081, got %q", cfg.Server.Addr)
	}
	if cfg.Session.Backend != BackendRedis {
		t.Fatalf("expected redis backend, got %q", cfg.Session.Backend)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("expected redis db 3, got %d", cfg.Redis.DB)
	}
	if cfg.Session.CookieSecure {
		t.Fatal("expected cookie secure override to false")
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.API.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected trimmed level, got %q", cfg.Log.Level)
	}
	if !cfg.StubAPI.SeedDemo {
		t.Fatal("expected seed demo enabled")
	}
	if cfg.API.MaxAttempts != 3 {
		t.Fatalf("blank override must keep default attempts, got %d", cfg.API.MaxAttempts)
	}
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	tests := map[string]string{
		"CAREBOOK_REDIS_DB":       "zero",
		"CAREBOOK_COOKIE_SECURE":  "maybe",
		"CAREBOOK_API_TIMEOUT":    "30",
		"CAREBOOK_STUB_TOKEN_TTL": "1 day",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			cfg := DefaultConfig()
			err := applyEnv(&cfg, func(k string) (string, bool) {
				if k == key {
					return value, true
				}
				return "", false
			})
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error to name %s, got %v", key, err)
			}
		})
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carebook.yaml")
	body := `
server:
  addr: ":9000"
session:
  backend: redis
  ttl: 48h
redis:
  addr: ${CAREBOOK_TEST_REDIS}
api:
  base_url: http://127.0.0.1:4000/api/v1
  max_attempts: 2
log:
  format: json
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CAREBOOK_TEST_REDIS", "redis.internal:6380")
	t.Setenv("CAREBOOK_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Fatalf("expected addr from file, got %q", cfg.Server.Addr)
	}
	if cfg.Session.Backend != BackendRedis || cfg.Session.TTL != 48*time.Hour {
		t.Fatalf("unexpected session section: %+v", cfg.Session)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Fatalf("expected expanded redis addr, got %q", cfg.Redis.Addr)
	}
	if cfg.Redis.Prefix != "carebook" {
		t.Fatalf("expected default prefix kept, got %q", cfg.Redis.Prefix)
	}
	if cfg.API.MaxAttempts != 2 || cfg.API.Timeout != 30*time.Second {
		t.Fatalf("unexpected api section: %+v", cfg.API)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "warn" {
		t.Fatalf("expected json format and env level, got %+v", cfg.Log)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfigRejectsInvalidResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("session:\n  backend: file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
