package carebook

import (
	"fmt"
	"net/http"

	"github.com/MrEthical07/carebook/apiclient"
	"github.com/MrEthical07/carebook/guard"
	"github.com/MrEthical07/carebook/jwt"
	"github.com/MrEthical07/carebook/session"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles a [Portal]. It is single-use and not safe for concurrent use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	auditSink  AuditSink
	log        logrus.FieldLogger
	httpClient *http.Client
	routes     guard.Routes

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis injects the client used by the redis session backend and login throttling.
// Without one, Build dials Config.Redis and the Portal closes that client on Close.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	b.log = log
	return b
}

// WithHTTPClient replaces the transport used for remote API calls.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithRoutes overrides the URL of guard destinations.
func (b *Builder) WithRoutes(routes guard.Routes) *Builder {
	b.routes = routes
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the portal's collaborators.
func (b *Builder) Build() (*Portal, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	cfg := b.config
	log := b.log
	if log == nil {
		log = logrus.StandardLogger()
	}

	p := &Portal{
		config:  cfg,
		log:     log,
		metrics: NewMetrics(cfg.Metrics),
		routes:  guard.DefaultRoutes(),
	}
	for dest, url := range b.routes {
		p.routes[dest] = url
	}

	key, err := cfg.Session.SealKeyBytes()
	if err != nil {
		return nil, err
	}
	if key != nil {
		if p.sealer, err = session.NewSealer(key); err != nil {
			return nil, err
		}
	}

	if cfg.Session.Backend == BackendRedis || cfg.LoginThrottle.Enabled {
		p.redis = b.redis
		if p.redis == nil {
			p.redis = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			p.ownsRedis = true
		}
	}

	inspector, err := newInspector(cfg.API)
	if err != nil {
		p.closeRedis()
		return nil, err
	}

	opts := []apiclient.Option{
		apiclient.WithInspector(inspector),
		apiclient.WithLogger(log.WithField("component", "apiclient")),
		apiclient.WithCallObserver(p.observeCall),
	}
	if b.httpClient != nil {
		opts = append(opts, apiclient.WithHTTPClient(b.httpClient))
	}
	p.api, err = apiclient.New(cfg.API.ClientConfig(), opts...)
	if err != nil {
		p.closeRedis()
		return nil, fmt.Errorf("build api client: %w", err)
	}

	p.audit = newAuditDispatcher(cfg.Audit, b.auditSink, log.WithField("component", "audit"))

	b.built = true
	return p, nil
}

// newInspector verifies HS256 or Ed25519 signatures when a key is configured, and
// otherwise only reads token expiry.
func newInspector(cfg APIConfig) (*jwt.Inspector, error) {
	var jc jwt.Config
	switch {
	case cfg.VerifySecret != "":
		jc = jwt.Config{SigningMethod: jwt.MethodHS256, PrivateKey: []byte(cfg.VerifySecret)}
	case cfg.VerifyPublicKey != "":
		key, err := cfg.verifyPublicKey()
		if err != nil {
			return nil, err
		}
		jc = jwt.Config{SigningMethod: jwt.MethodEd25519, PublicKey: key}
	default:
		return jwt.NewInspector(nil, cfg.JWTLeeway), nil
	}

	jc.Leeway = cfg.JWTLeeway
	m, err := jwt.NewManager(jc)
	if err != nil {
		return nil, fmt.Errorf("build token verifier: %w", err)
	}
	return jwt.NewInspector(m, cfg.JWTLeeway), nil
}
