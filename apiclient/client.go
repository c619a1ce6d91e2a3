package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/carebook/jwt"
	"github.com/MrEthical07/carebook/session"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://appointment-manager-node.onrender.com/api/v1"
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 4 << 20
)

// Config configures a [Client].
type Config struct {
	BaseURL string
	// Timeout bounds each attempt, not the whole retried call.
	Timeout         time.Duration
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns the production settings: 30s per attempt, three attempts with
// 2s and 4s pauses between them.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Timeout:         DefaultTimeout,
		MaxAttempts:     3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// CallStats describes one finished API call, across all of its attempts.
type CallStats struct {
	Endpoint string
	Status   int
	Attempts int
	Duration time.Duration
	Err      error
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the transport. Its Timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithInspector installs the token pre-check run before protected calls.
func WithInspector(i *jwt.Inspector) Option {
	return func(c *Client) {
		c.inspector = i
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithCallObserver installs fn to receive stats for every call.
func WithCallObserver(fn func(CallStats)) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	retry     retryPolicy
	inspector *jwt.Inspector
	log       logrus.FieldLogger
	observe   func(CallStats)
}

// New validates cfg and returns a Client. Zero fields take their [DefaultConfig] values.
func New(cfg Config, opts ...Option) (*Client, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = def.MaxInterval
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		retry: retryPolicy{
			maxAttempts: cfg.MaxAttempts,
			initial:     cfg.InitialInterval,
			max:         cfg.MaxInterval,
		},
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Bind returns a view of the client acting for store. store may be nil for pages that
// only use the public authentication endpoints.
func (c *Client) Bind(store *session.Store) *Bound {
	return &Bound{c: c, store: store}
}

type authMode int

const (
	authNone authMode = iota
	authOptional
	authRequired
)

type call struct {
	name   string
	method string
	path   string
	query  url.Values
	body   interface{}
	out    interface{}
	auth   authMode
	retry  bool
}

// Bound is a [Client] bound to one session.
type Bound struct {
	c     *Client
	store *session.Store
}

func (b *Bound) do(ctx context.Context, cl call) error {
	start := time.Now()
	stats := CallStats{Endpoint: cl.name}
	defer func() {
		stats.Duration = time.Since(start)
		if b.c.observe != nil {
			b.c.observe(stats)
		}
	}()

	var token string
	switch cl.auth {
	case authRequired:
		if b.store == nil {
			stats.Err = ErrNoSession
			return ErrNoSession
		}
		token = b.store.Token()
		if token == "" {
			stats.Err = b.unauthorized(ctx, cl.name, "no credential")
			return stats.Err
		}
		if err := b.c.inspector.Check(token); err != nil {
			stats.Err = b.unauthorized(ctx, cl.name, err.Error())
			return stats.Err
		}
	case authOptional:
		if b.store != nil {
			token = b.store.Token()
		}
	}

	attempt := func() error {
		stats.Attempts++
		status, err := b.c.send(ctx, cl, token)
		stats.Status = status
		return err
	}

	var err error
	if cl.retry {
		err = b.c.retry.run(ctx, attempt, func(err error, wait time.Duration) {
			b.c.log.WithFields(logrus.Fields{
				"endpoint": cl.name,
				"attempt":  stats.Attempts,
				"retry_in": wait,
			}).WithError(err).Warn("api call failed, retrying")
		})
	} else {
		err = attempt()
	}

	if errors.Is(err, ErrUnauthorized) {
		err = b.unauthorized(ctx, cl.name, "rejected by API")
	}
	stats.Err = err
	return err
}

// unauthorized clears the bound session so the next guard evaluation redirects to login.
func (b *Bound) unauthorized(ctx context.Context, endpoint, reason string) error {
	entry := b.c.log.WithFields(logrus.Fields{"endpoint": endpoint, "reason": reason})
	if b.store != nil {
		if err := b.store.Logout(ctx); err != nil {
			entry = entry.WithError(err)
		}
	}
	entry.Info("session credential rejected, logged out")
	return ErrUnauthorized
}

func (c *Client) send(ctx context.Context, cl call, token string) (int, error) {
	var body io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && cl.auth != authNone {
		return resp.StatusCode, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(data, &env) == nil {
			apiErr.Message = env.Message
			if apiErr.Message == "" {
				apiErr.Message = env.Error
			}
		}
		return resp.StatusCode, apiErr
	}

	if cl.out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, cl.out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	return resp.StatusCode, nil
}

func pageValues(q url.Values, page int) {
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
}
