package carebook

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/carebook/apiclient"
	"github.com/MrEthical07/carebook/jwt"
	"github.com/MrEthical07/carebook/session"
)

// Config is the full portal configuration. Build it with [DefaultConfig] or
// [LoadConfig] and treat it as immutable once handed to a [Builder].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Session       SessionConfig       `yaml:"session"`
	Redis         RedisConfig         `yaml:"redis"`
	API           APIConfig           `yaml:"api"`
	InternalFetch InternalFetchConfig `yaml:"internal_fetch"`
	Log           LogConfig           `yaml:"log"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Audit         AuditConfig         `yaml:"audit"`
	LoginThrottle LoginThrottleConfig `yaml:"login_throttle"`
	StubAPI       StubAPIConfig       `yaml:"stub_api"`
}

/*
====================================
SERVER CONFIG
====================================
*/

// ServerConfig controls the portal's HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionBackend selects where durable session entries live.
type SessionBackend string

const (
	// BackendCookie keeps the token and user record in browser cookies.
	BackendCookie SessionBackend = "cookie"
	// BackendRedis keeps them in Redis; the browser only holds a session id cookie.
	BackendRedis SessionBackend = "redis"
)

// SessionConfig controls durable session persistence.
type SessionConfig struct {
	Backend      SessionBackend `yaml:"backend"`
	TTL          time.Duration  `yaml:"ttl"`
	CookiePrefix string         `yaml:"cookie_prefix"`
	CookiePath   string         `yaml:"cookie_path"`
	CookieDomain string         `yaml:"cookie_domain"`
	CookieSecure bool           `yaml:"cookie_secure"`
	// CookieSameSite is "strict" or "lax".
	CookieSameSite string `yaml:"cookie_same_site"`
	// SealKey is a base64 encoded 32-byte key. When set, cookie values are encrypted.
	SealKey  string `yaml:"seal_key"`
	IDCookie string `yaml:"id_cookie"`
}

// SameSiteMode maps CookieSameSite onto the cookie attribute. Unknown values fall back
// to strict; Validate rejects them.
func (c SessionConfig) SameSiteMode() http.SameSite {
	if strings.EqualFold(strings.TrimSpace(c.CookieSameSite), "lax") {
		return http.SameSiteLaxMode
	}
	return http.SameSiteStrictMode
}

// SealKeyBytes decodes SealKey. It returns nil, nil when no key is configured.
func (c SessionConfig) SealKeyBytes() ([]byte, error) {
	raw := strings.TrimSpace(c.SealKey)
	if raw == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode seal key: %w", err)
	}
	if len(key) != 32 {
		return nil, session.ErrSealKeyInvalid
	}
	return key, nil
}

/*
====================================
REDIS CONFIG
====================================
*/

// RedisConfig is used when Session.Backend is "redis" and no client is injected.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig controls the remote appointment API collaborator.
type APIConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	// JWTLeeway tolerates clock skew when reading token expiry.
	JWTLeeway time.Duration `yaml:"jwt_leeway"`
	// VerifySecret, when set, makes the token pre-check verify HS256 signatures instead of
	// only reading the exp claim.
	VerifySecret string `yaml:"verify_secret"`
	// VerifyPublicKey does the same for Ed25519-signed tokens. It holds a PKIX PEM block
	// or the base64 encoded raw key.
	VerifyPublicKey string `yaml:"verify_public_key"`
}

// ClientConfig converts the section into an [apiclient.Config].
func (c APIConfig) ClientConfig() apiclient.Config {
	return apiclient.Config{
		BaseURL:         c.BaseURL,
		Timeout:         c.Timeout,
		MaxAttempts:     c.MaxAttempts,
		InitialInterval: c.InitialInterval,
		MaxInterval:     c.MaxInterval,
	}
}

func (c APIConfig) verifyPublicKey() (ed25519.PublicKey, error) {
	raw, err := jwt.KeyBytes(c.VerifyPublicKey)
	if err != nil {
		return nil, fmt.Errorf("api verify_public_key: %w", err)
	}
	key, err := jwt.ParseEdPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("api verify_public_key: %w", err)
	}
	return key, nil
}

/*
====================================
INTERNAL FETCH CONFIG
====================================
*/

// InternalFetchConfig recognises framework-internal data fetches. Guard redirects are
// suppressed for them.
type InternalFetchConfig struct {
	QueryParam  string `yaml:"query_param"`
	Header      string `yaml:"header"`
	HeaderValue string `yaml:"header_value"`
}

/*
====================================
LOG CONFIG
====================================
*/

// LogConfig selects the logrus level and formatter ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig enables the in-process counters behind /metrics.
type MetricsConfig struct {
	Enabled                 bool       `yaml:"enabled"`
	EnableLatencyHistograms bool       `yaml:"enable_latency_histograms"`
	Path                    string     `yaml:"path"`
	OTel                    OTelConfig `yaml:"otel"`
}

// OTelConfig installs an OpenTelemetry meter provider that logs the counters every
// Interval. It only applies when metrics are enabled.
type OTelConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous delivery of session lifecycle events.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

/*
====================================
LOGIN THROTTLE CONFIG
====================================
*/

// LoginThrottleConfig limits failed logins per email (and per client IP) in a fixed
// window. The counters live in Redis, so enabling it requires a reachable Redis even
// with the cookie session backend.
type LoginThrottleConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
	PerIP       bool          `yaml:"per_ip"`
}

/*
====================================
STUB API CONFIG
====================================
*/

// StubAPIConfig configures `carebook stub-api`, the local stand-in for the remote API.
type StubAPIConfig struct {
	Addr       string        `yaml:"addr"`
	Secret     string        `yaml:"secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
	SeedDemo   bool          `yaml:"seed_demo"`
	// SigningKey switches token issuance to Ed25519. It holds a PKCS#8 PEM block or the
	// base64 encoded raw 64-byte key; Secret is then not needed.
	SigningKey string `yaml:"signing_key"`
}

// SigningKeyBytes decodes SigningKey. It returns nil, nil when none is configured.
func (c StubAPIConfig) SigningKeyBytes() (ed25519.PrivateKey, error) {
	if strings.TrimSpace(c.SigningKey) == "" {
		return nil, nil
	}
	raw, err := jwt.KeyBytes(c.SigningKey)
	if err != nil {
		return nil, err
	}
	return jwt.ParseEdPrivateKey(raw)
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns production defaults: cookie sessions for seven days, the hosted
// API with three attempts, text logs at info.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Session: SessionConfig{
			Backend:        BackendCookie,
			TTL:            session.DefaultTTL,
			CookiePrefix:   "cb_",
			CookiePath:     "/",
			CookieSecure:   true,
			CookieSameSite: "strict",
			IDCookie:       "cb_sid",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "carebook",
		},
		API: APIConfig{
			BaseURL:         apiclient.DefaultBaseURL,
			Timeout:         apiclient.DefaultTimeout,
			MaxAttempts:     3,
			InitialInterval: 2 * time.Second,
			MaxInterval:     30 * time.Second,
			JWTLeeway:       30 * time.Second,
		},
		InternalFetch: InternalFetchConfig{
			QueryParam:  "_rsc",
			Header:      "RSC",
			HeaderValue: "1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
			Path:                    "/metrics",
			OTel: OTelConfig{
				Interval: time.Minute,
			},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		LoginThrottle: LoginThrottleConfig{
			Enabled:     false,
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			PerIP:       true,
		},
		StubAPI: StubAPIConfig{
			Addr:       ":4000",
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first problem found, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// Server
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server addr must be set")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown_timeout must be > 0")
	}

	// Session
	switch c.Session.Backend {
	case BackendCookie:
	case BackendRedis:
		if strings.TrimSpace(c.Redis.Prefix) == "" {
			return fmt.Errorf("redis prefix must be set for the redis session backend")
		}
		if strings.TrimSpace(c.Session.IDCookie) == "" {
			return fmt.Errorf("session id_cookie must be set for the redis session backend")
		}
	default:
		return fmt.Errorf("session backend must be 'cookie' or 'redis', got %q", c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be > 0")
	}
	if !strings.HasPrefix(c.Session.CookiePath, "/") {
		return fmt.Errorf("session cookie_path must start with '/'")
	}
	if strings.ContainsAny(c.Session.CookiePrefix, " ;=,") {
		return fmt.Errorf("session cookie_prefix contains invalid characters")
	}
	switch strings.ToLower(strings.TrimSpace(c.Session.CookieSameSite)) {
	case "strict", "lax":
	default:
		return fmt.Errorf("session cookie_same_site must be 'strict' or 'lax', got %q", c.Session.CookieSameSite)
	}
	if _, err := c.Session.SealKeyBytes(); err != nil {
		return err
	}

	// API
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api base_url %q is not an absolute http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be > 0")
	}
	if c.API.MaxAttempts < 1 || c.API.MaxAttempts > 10 {
		return fmt.Errorf("api max_attempts must be within [1, 10]")
	}
	if c.API.InitialInterval <= 0 {
		return fmt.Errorf("api initial_interval must be > 0")
	}
	if c.API.MaxInterval < c.API.InitialInterval {
		return fmt.Errorf("api max_interval must be >= initial_interval")
	}
	if c.API.JWTLeeway < 0 || c.API.JWTLeeway > 2*time.Minute {
		return fmt.Errorf("api jwt_leeway must be within [0, 2m]")
	}
	if c.API.VerifySecret != "" && c.API.VerifyPublicKey != "" {
		return fmt.Errorf("api verify_secret and verify_public_key are mutually exclusive")
	}
	if c.API.VerifyPublicKey != "" {
		if _, err := c.API.verifyPublicKey(); err != nil {
			return err
		}
	}

	// Internal fetch
	if c.InternalFetch.QueryParam == "" && c.InternalFetch.Header == "" {
		return fmt.Errorf("internal_fetch needs a query_param or a header")
	}

	// Log
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be 'text' or 'json'")
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	// Metrics
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/'")
	}
	if c.Metrics.Enabled && c.Metrics.OTel.Enabled && c.Metrics.OTel.Interval <= 0 {
		return fmt.Errorf("metrics otel interval must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("audit buffer_size must be > 0 when audit is enabled")
	}

	// Login throttle
	if c.LoginThrottle.Enabled {
		if c.LoginThrottle.MaxAttempts < 1 {
			return fmt.Errorf("login_throttle max_attempts must be >= 1")
		}
		if c.LoginThrottle.Window <= 0 {
			return fmt.Errorf("login_throttle window must be > 0")
		}
		if strings.TrimSpace(c.Redis.Prefix) == "" {
			return fmt.Errorf("redis prefix must be set for login throttling")
		}
	}

	return nil
}

// ValidateStubAPI checks the section used by `carebook stub-api` only.
func (c *Config) ValidateStubAPI() error {
	if strings.TrimSpace(c.StubAPI.Addr) == "" {
		return fmt.Errorf("%w: stub_api addr must be set", ErrInvalidConfig)
	}
	if c.StubAPI.SigningKey != "" {
		if _, err := c.StubAPI.SigningKeyBytes(); err != nil {
			return fmt.Errorf("%w: stub_api signing_key: %v", ErrInvalidConfig, err)
		}
	} else if len(c.StubAPI.Secret) < 16 {
		return fmt.Errorf("%w: stub_api secret must be at least 16 bytes", ErrInvalidConfig)
	}
	if c.StubAPI.TokenTTL <= 0 {
		return fmt.Errorf("%w: stub_api token_ttl must be > 0", ErrInvalidConfig)
	}
	return nil
}
