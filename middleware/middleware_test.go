package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/guard"
	"github.com/MrEthical07/carebook/session"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func newTestPortal(t *testing.T) *carebook.Portal {
	t.Helper()
	cfg := carebook.DefaultConfig()
	cfg.Session.CookieSecure = false

	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})

	p, err := carebook.New().WithConfig(cfg).WithLogger(log).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func loginCookies(t *testing.T, p *carebook.Portal, user *session.User) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	page, err := p.Open(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	page.Boot.Activate(context.Background())
	if err := page.Store.Login(context.Background(), "tok-"+user.ID, user); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return rec.Result().Cookies()
}

func requestWith(method, target string, cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

var (
	patientUser = &session.User{ID: "p1", Name: "Pat", Role: session.RolePatient}
	doctorUser  = &session.User{ID: "d1", Name: "Doc", Role: session.RoleDoctor, Specialization: "Cardiology"}
)

type recordingHandler struct {
	calls int
	last  *http.Request
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls++
	h.last = r
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("protected"))
}

func TestGuardRedirectsAnonymousToLogin(t *testing.T) {
	p := newTestPortal(t)
	next := &recordingHandler{}
	h := Guard(p, session.RolePatient)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patient/dashboard", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login" {
		t.Fatalf("expected redirect to /login, got %q", got)
	}
	if strings.Contains(rec.Body.String(), "protected") || !strings.Contains(rec.Body.String(), "Loading") {
		t.Fatalf("expected placeholder body, got %q", rec.Body.String())
	}
	if next.calls != 0 {
		t.Fatal("protected handler must not run")
	}
	if got := p.Metrics().Value(carebook.MetricGuardRedirect); got != 1 {
		t.Fatalf("expected one redirect recorded, got %d", got)
	}
}

func TestGuardAuthorizedReachesHandler(t *testing.T) {
	p := newTestPortal(t)
	cookies := loginCookies(t, p, patientUser)
	next := &recordingHandler{}
	h := Guard(p, session.RolePatient)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(http.MethodGet, "/patient/dashboard", cookies))

	if rec.Code != http.StatusOK || next.calls != 1 {
		t.Fatalf("expected handler to run, got status %d calls %d", rec.Code, next.calls)
	}
	store, ok := SessionFromContext(next.last.Context())
	if !ok || store.User().ID != "p1" {
		t.Fatal("expected hydrated session in context")
	}
	if _, ok := BootstrapperFromContext(next.last.Context()); !ok {
		t.Fatal("expected bootstrapper in context")
	}
	d, ok := DecisionFromContext(next.last.Context())
	if !ok || d.State != guard.Authorized {
		t.Fatalf("expected authorized decision, got %+v", d)
	}
	if _, redirected := Redirect(next.last.Context()); redirected {
		t.Fatal("expected no redirect for an authorized request")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("expected guarded response to be uncacheable")
	}
}

func TestGuardWrongRoleGoesHome(t *testing.T) {
	p := newTestPortal(t)
	cookies := loginCookies(t, p, doctorUser)
	h := Guard(p, session.RolePatient)(&recordingHandler{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(http.MethodGet, "/patient/appointments", cookies))

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/doctor/dashboard" {
		t.Fatalf("expected 303 to doctor home, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestGuardAnyRoleAdmitsLoggedInUser(t *testing.T) {
	p := newTestPortal(t)
	cookies := loginCookies(t, p, doctorUser)
	next := &recordingHandler{}

	rec := httptest.NewRecorder()
	Guard(p, "")(next).ServeHTTP(rec, requestWith(http.MethodGet, "/account", cookies))
	if next.calls != 1 {
		t.Fatalf("expected any logged-in user to pass, got %d", rec.Code)
	}
}

func TestGuardSuppressesRedirectForInternalFetch(t *testing.T) {
	p := newTestPortal(t)
	next := &recordingHandler{}
	h := Guard(p, session.RoleDoctor)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doctor/dashboard?_rsc=1", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("Location") != "" {
		t.Fatal("suppressed redirect must not set Location")
	}
	if next.calls != 0 {
		t.Fatal("protected handler must not run")
	}
	if got := p.Metrics().Value(carebook.MetricGuardSuppressed); got != 1 {
		t.Fatalf("expected suppressed counter 1, got %d", got)
	}
}

func TestGuardCustomInternalFetchPredicate(t *testing.T) {
	p := newTestPortal(t)
	h := Guard(p, session.RolePatient, WithInternalFetch(InternalFetchByHeader("X-Prefetch", "")))(&recordingHandler{})

	req := httptest.NewRequest(http.MethodGet, "/patient/dashboard?_rsc=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected override to ignore the portal marker, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/patient/dashboard", nil)
	req.Header.Set("X-Prefetch", "yes")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected custom marker to suppress, got %d", rec.Code)
	}
}

func TestGuardSeesLogoutDuringHandler(t *testing.T) {
	p := newTestPortal(t)
	cookies := loginCookies(t, p, patientUser)

	var redirect string
	var redirected bool
	h := Guard(p, session.RolePatient)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, _ := SessionFromContext(r.Context())
		_ = store.Logout(r.Context())
		redirect, redirected = Redirect(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(http.MethodGet, "/patient/dashboard", cookies))

	if !redirected || redirect != "/login" {
		t.Fatalf("expected redirect to /login after logout, got %q (%v)", redirect, redirected)
	}
}

func TestSessionAndGuardHydrateOnce(t *testing.T) {
	p := newTestPortal(t)
	cookies := loginCookies(t, p, patientUser)
	before := p.Metrics().Value(carebook.MetricPageOpened)

	next := &recordingHandler{}
	h := Session(p)(Guard(p, session.RolePatient)(next))
	h.ServeHTTP(httptest.NewRecorder(), requestWith(http.MethodGet, "/patient/dashboard", cookies))

	if next.calls != 1 {
		t.Fatal("expected handler to run")
	}
	if got := p.Metrics().Value(carebook.MetricPageOpened) - before; got != 1 {
		t.Fatalf("expected one page per request, got %d", got)
	}
	if got := p.Metrics().Value(carebook.MetricSessionHydrated); got != 1 {
		t.Fatalf("expected one hydration, got %d", got)
	}
}

func TestSessionClosedPortalServesPlaceholder(t *testing.T) {
	p := newTestPortal(t)
	p.Close()

	next := &recordingHandler{}
	rec := httptest.NewRecorder()
	Session(p)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 503 with Retry-After, got %d", rec.Code)
	}
	if next.calls != 0 {
		t.Fatal("handler must not run without a session")
	}
}

func TestShellForwardsAuthenticatedVisitor(t *testing.T) {
	p := newTestPortal(t)
	cookies := loginCookies(t, p, doctorUser)
	next := &recordingHandler{}
	h := Shell(p)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(http.MethodGet, "/login", cookies))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/doctor/dashboard" {
		t.Fatalf("expected forward to doctor home, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if next.calls != 0 {
		t.Fatal("login page must not render for an authenticated visitor")
	}
	if p.Metrics().Value(carebook.MetricShellForward) != 1 {
		t.Fatal("expected shell forward to be counted")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rec.Code != http.StatusOK || next.calls != 1 {
		t.Fatalf("expected anonymous visitor to see login, got %d", rec.Code)
	}
}

func TestShellIgnoresInternalFetch(t *testing.T) {
	p := newTestPortal(t)
	cookies := loginCookies(t, p, patientUser)
	next := &recordingHandler{}

	rec := httptest.NewRecorder()
	Shell(p)(next).ServeHTTP(rec, requestWith(http.MethodGet, "/register?_rsc=x", cookies))
	if next.calls != 1 {
		t.Fatalf("expected internal fetch to pass through, got %d", rec.Code)
	}
}

func TestInternalFetchPredicates(t *testing.T) {
	byQuery := InternalFetchByQuery("_rsc")
	byHeader := InternalFetchByHeader("RSC", "1")
	either := AnyInternalFetch(nil, byQuery, byHeader)

	plain := httptest.NewRequest(http.MethodGet, "/x", nil)
	query := httptest.NewRequest(http.MethodGet, "/x?_rsc=", nil)
	header := httptest.NewRequest(http.MethodGet, "/x", nil)
	header.Header.Set("rsc", "1")

	if byQuery(plain) || byHeader(plain) || either(plain) {
		t.Fatal("plain navigation must not match")
	}
	if !byQuery(query) || byHeader(query) {
		t.Fatal("query predicate mismatch")
	}
	if byQuery(header) || !byHeader(header) {
		t.Fatal("header predicate mismatch")
	}
	if !either(query) || !either(header) {
		t.Fatal("combined predicate must match either marker")
	}
	if InternalFetchByQuery("")(query) {
		t.Fatal("empty parameter name must never match")
	}
}

func TestGinAdapters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := newTestPortal(t)

	r := gin.New()
	r.Use(GinSession(p))
	r.GET("/login", GinShell(p), func(c *gin.Context) {
		c.String(http.StatusOK, "login form")
	})
	r.GET("/patient/dashboard", GinGuard(p, session.RolePatient), func(c *gin.Context) {
		page, ok := PageFromGin(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, "hello "+page.Store.User().Name)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patient/dashboard", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected anonymous redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	cookies := loginCookies(t, p, patientUser)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, requestWith(http.MethodGet, "/patient/dashboard", cookies))
	if rec.Code != http.StatusOK || rec.Body.String() != "hello Pat" {
		t.Fatalf("expected dashboard, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, requestWith(http.MethodGet, "/login", cookies))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/patient/dashboard" {
		t.Fatalf("expected shell forward, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}
