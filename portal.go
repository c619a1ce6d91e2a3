package carebook

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/carebook/apiclient"
	"github.com/MrEthical07/carebook/guard"
	"github.com/MrEthical07/carebook/session"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Portal owns the long-lived collaborators: API client, metrics, audit dispatch and
// the Redis connection. It is safe for concurrent use.
type Portal struct {
	config    Config
	log       logrus.FieldLogger
	redis     redis.UniversalClient
	ownsRedis bool
	sealer    *session.Sealer
	api       *apiclient.Client
	metrics   *Metrics
	audit     *auditDispatcher
	routes    guard.Routes
	closed    atomic.Bool
}

// Page is everything one page load needs: a fresh store hydrated by its own
// bootstrapper, and an API view acting for that store.
type Page struct {
	Store     *session.Store
	Boot      *session.Bootstrapper
	API       *apiclient.Bound
	SessionID string
	Internal  bool
}

// Open prepares the session for one request. Durable reads happen later, in
// Boot.Activate. With the redis backend a new session id cookie is issued when the
// request carries none (or a malformed one), and the id is replaced on login and
// logout unless it was issued during this exchange.
func (p *Portal) Open(w http.ResponseWriter, r *http.Request) (*Page, error) {
	if p.closed.Load() {
		return nil, ErrPortalClosed
	}

	page := &Page{Internal: p.InternalFetch(r)}
	persister, err := p.persisterFor(w, r, page)
	if err != nil {
		return nil, err
	}

	page.Store = session.NewStore(persister, session.WithObserver(p.sessionObserver(page)))
	page.Boot = session.NewBootstrapper(page.Store)
	page.API = p.api.Bind(page.Store)

	p.metrics.Inc(MetricPageOpened)
	return page, nil
}

func (p *Portal) persisterFor(w http.ResponseWriter, r *http.Request, page *Page) (session.Persister, error) {
	ttl := p.config.Session.TTL
	if p.config.Session.Backend != BackendRedis {
		storage := session.NewCookieStorage(w, r, p.cookieOptions(), p.sealer)
		return session.NewDurablePersister(storage, ttl), nil
	}

	fresh := false
	sid := ""
	if c, err := r.Cookie(p.config.Session.IDCookie); err == nil && session.ValidSessionID(c.Value) {
		sid = c.Value
	}
	if sid == "" {
		sid = session.NewSessionID()
		fresh = true
		p.setSessionID(w, sid)
	}

	storage, err := session.NewRedisStorage(p.redis, p.config.Redis.Prefix, sid)
	if err != nil {
		return nil, err
	}
	page.SessionID = sid

	return &rotatingPersister{
		DurablePersister: session.NewDurablePersister(storage, ttl),
		storage:          storage,
		fresh:            fresh,
		rotated: func(ctx context.Context, next string, err error) {
			if err != nil {
				p.log.WithError(err).WithField("request_id", RequestIDFromContext(ctx)).
					Warn("deleting entries of replaced session id")
			}
			page.SessionID = next
			p.metrics.Inc(MetricSessionRotated)
			p.setSessionID(w, next)
		},
	}, nil
}

func (p *Portal) setSessionID(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.config.Session.IDCookie,
		Value:    sid,
		Path:     p.config.Session.CookiePath,
		Domain:   p.config.Session.CookieDomain,
		Secure:   p.config.Session.CookieSecure,
		HttpOnly: true,
		SameSite: p.config.Session.SameSiteMode(),
		MaxAge:   int(p.config.Session.TTL / time.Second),
	})
}

func (p *Portal) cookieOptions() session.CookieOptions {
	return session.CookieOptions{
		Prefix:   p.config.Session.CookiePrefix,
		Path:     p.config.Session.CookiePath,
		Domain:   p.config.Session.CookieDomain,
		Secure:   p.config.Session.CookieSecure,
		HTTPOnly: true,
		SameSite: p.config.Session.SameSiteMode(),
	}
}

// rotatingPersister moves a redis session to a fresh id before a login is written and
// after a full erase, so an id that reached the browser from elsewhere never carries an
// authenticated session. An id issued during the current exchange is kept.
type rotatingPersister struct {
	*session.DurablePersister
	storage *session.RedisStorage
	fresh   bool
	rotated func(ctx context.Context, sid string, err error)
}

func (rp *rotatingPersister) Save(ctx context.Context, token string, user *session.User) error {
	rp.rotate(ctx)
	return rp.DurablePersister.Save(ctx, token, user)
}

func (rp *rotatingPersister) Erase(ctx context.Context, entries ...string) error {
	err := rp.DurablePersister.Erase(ctx, entries...)
	if len(entries) == 0 {
		rp.rotate(ctx)
	}
	return err
}

func (rp *rotatingPersister) rotate(ctx context.Context) {
	if rp.fresh {
		return
	}
	sid, err := rp.storage.Rotate(ctx)
	rp.fresh = true
	rp.rotated(ctx, sid, err)
}

// InternalFetch reports whether r is a framework-internal data fetch, recognised by
// the configured query parameter or header.
func (p *Portal) InternalFetch(r *http.Request) bool {
	cfg := p.config.InternalFetch
	if cfg.QueryParam != "" && r.URL.Query().Has(cfg.QueryParam) {
		return true
	}
	if cfg.Header == "" {
		return false
	}
	v := r.Header.Get(cfg.Header)
	if cfg.HeaderValue == "" {
		return v != ""
	}
	return strings.EqualFold(v, cfg.HeaderValue)
}

func (p *Portal) sessionObserver(page *Page) func(context.Context, session.Event) {
	return func(ctx context.Context, ev session.Event) {
		p.metrics.recordSessionEvent(ev.Kind)

		fields := logrus.Fields{"event": ev.Kind.String()}
		if ev.UserID != "" {
			fields["user_id"] = ev.UserID
		}
		if rid := RequestIDFromContext(ctx); rid != "" {
			fields["request_id"] = rid
		}
		if len(ev.Entries) > 0 {
			fields["entries"] = strings.Join(ev.Entries, ",")
		}
		entry := p.log.WithFields(fields)
		switch ev.Kind {
		case session.EventPersistFailed, session.EventStorageUnavailable, session.EventPurged:
			entry.WithError(ev.Err).Warn("session event")
		default:
			entry.Debug("session event")
		}

		p.audit.Emit(ctx, auditEventFor(ctx, page.SessionID, ev))
	}
}

func auditEventFor(ctx context.Context, sid string, ev session.Event) AuditEvent {
	out := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditTypeFor(ev.Kind),
		UserID:    ev.UserID,
		Role:      string(ev.Role),
		SessionID: sid,
		RequestID: RequestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   ev.Err == nil,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	if len(ev.Entries) > 0 {
		out.Metadata = map[string]string{"entries": strings.Join(ev.Entries, ",")}
	}
	return out
}

func auditTypeFor(kind session.EventKind) string {
	switch kind {
	case session.EventLogin:
		return AuditSessionLogin
	case session.EventLogout:
		return AuditSessionLogout
	case session.EventHydrated:
		return AuditSessionHydrated
	case session.EventCleared:
		return AuditSessionCleared
	case session.EventPurged:
		return AuditSessionPurged
	case session.EventPersistFailed:
		return AuditSessionPersistFail
	case session.EventStorageUnavailable:
		return AuditSessionUnavailable
	default:
		return "session." + kind.String()
	}
}

func (p *Portal) observeCall(stats apiclient.CallStats) {
	p.metrics.Inc(MetricAPICall)
	p.metrics.Observe(MetricAPILatency, stats.Duration)
	if stats.Attempts > 1 {
		p.metrics.Add(MetricAPIRetry, uint64(stats.Attempts-1))
	}
	if stats.Err != nil {
		p.metrics.Inc(MetricAPIFailure)
	}
	if errors.Is(stats.Err, apiclient.ErrUnauthorized) {
		p.metrics.Inc(MetricAPIUnauthorized)
	}
}

// ObserveGuard records a guard decision.
func (p *Portal) ObserveGuard(d guard.Decision) {
	p.metrics.recordDecision(d)
}

// ObserveShellForward records an authenticated visit to login or register being sent home.
func (p *Portal) ObserveShellForward() {
	p.metrics.Inc(MetricShellForward)
}

// URL returns the path for a guard destination.
func (p *Portal) URL(d guard.Destination) string {
	return p.routes.URL(d)
}

func (p *Portal) Routes() guard.Routes {
	out := make(guard.Routes, len(p.routes))
	for k, v := range p.routes {
		out[k] = v
	}
	return out
}

// Redis returns the portal's Redis client, or nil when neither the redis session
// backend nor login throttling is configured.
func (p *Portal) Redis() redis.UniversalClient {
	return p.redis
}

func (p *Portal) Config() Config {
	return p.config
}

func (p *Portal) Logger() logrus.FieldLogger {
	return p.log
}

// API returns the shared client. Prefer Page.API inside a request.
func (p *Portal) API() *apiclient.Client {
	return p.api
}

func (p *Portal) Metrics() *Metrics {
	return p.metrics
}

// MetricsSnapshot satisfies the exporters in metrics/export.
func (p *Portal) MetricsSnapshot() MetricsSnapshot {
	return p.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped on a full queue.
func (p *Portal) AuditDropped() uint64 {
	return p.audit.Dropped()
}

// Health pings Redis when the redis backend is in use.
func (p *Portal) Health(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPortalClosed
	}
	if p.redis == nil {
		return nil
	}
	return p.redis.Ping(ctx).Err()
}

// Close flushes pending audit events and releases an owned Redis client. It is
// idempotent.
func (p *Portal) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.audit.Close()
	p.closeRedis()
}

func (p *Portal) closeRedis() {
	if p.ownsRedis && p.redis != nil {
		if err := p.redis.Close(); err != nil {
			p.log.WithError(err).Warn("closing redis client")
		}
	}
}
