package carebook

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "CAREBOOK_"

// LoadConfig assembles a Config from, in increasing precedence: [DefaultConfig], the
// YAML file at path (skipped when path is empty), and CAREBOOK_* environment
// variables. A .env file in the working directory, when present, is loaded into the
// environment first. The result is validated.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		if err := readConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found: %w", path, err)
		}
		return fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("ADDR", &cfg.Server.Addr)
	e.duration("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	var backend string
	if e.str("SESSION_BACKEND", &backend) {
		cfg.Session.Backend = SessionBackend(strings.ToLower(backend))
	}
	e.duration("SESSION_TTL", &cfg.Session.TTL)
	e.str("SESSION_SEAL_KEY", &cfg.Session.SealKey)
	e.str("COOKIE_DOMAIN", &cfg.Session.CookieDomain)
	e.boolean("COOKIE_SECURE", &cfg.Session.CookieSecure)
	e.str("COOKIE_SAME_SITE", &cfg.Session.CookieSameSite)

	e.str("REDIS_ADDR", &cfg.Redis.Addr)
	e.str("REDIS_PASSWORD", &cfg.Redis.Password)
	e.integer("REDIS_DB", &cfg.Redis.DB)
	e.str("REDIS_PREFIX", &cfg.Redis.Prefix)

	e.str("API_BASE_URL", &cfg.API.BaseURL)
	e.duration("API_TIMEOUT", &cfg.API.Timeout)
	e.integer("API_MAX_ATTEMPTS", &cfg.API.MaxAttempts)
	e.str("API_VERIFY_SECRET", &cfg.API.VerifySecret)
	e.str("API_VERIFY_PUBLIC_KEY", &cfg.API.VerifyPublicKey)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)

	e.boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	e.boolean("METRICS_OTEL_ENABLED", &cfg.Metrics.OTel.Enabled)
	e.duration("METRICS_OTEL_INTERVAL", &cfg.Metrics.OTel.Interval)
	e.boolean("AUDIT_ENABLED", &cfg.Audit.Enabled)

	e.boolean("LOGIN_THROTTLE_ENABLED", &cfg.LoginThrottle.Enabled)
	e.integer("LOGIN_THROTTLE_MAX_ATTEMPTS", &cfg.LoginThrottle.MaxAttempts)
	e.duration("LOGIN_THROTTLE_WINDOW", &cfg.LoginThrottle.Window)

	e.str("STUB_ADDR", &cfg.StubAPI.Addr)
	e.str("STUB_SECRET", &cfg.StubAPI.Secret)
	e.duration("STUB_TOKEN_TTL", &cfg.StubAPI.TokenTTL)
	e.boolean("STUB_SEED_DEMO", &cfg.StubAPI.SeedDemo)
	e.str("STUB_SIGNING_KEY", &cfg.StubAPI.SigningKey)

	return e.err
}

// envReader records the first malformed value; later reads still run.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(name, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidConfig, EnvPrefix, name, value, err)
	}
}

func (e *envReader) str(name string, dst *string) bool {
	v, ok := e.get(name)
	if ok {
		*dst = v
	}
	return ok
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(name string, dst *bool) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = d
}
