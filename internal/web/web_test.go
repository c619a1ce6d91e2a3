package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/apiclient"
	"github.com/MrEthical07/carebook/internal/stubapi"
	"github.com/MrEthical07/carebook/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	stub   *stubapi.Server
	engine *gin.Engine
	portal *carebook.Portal
}

func newFixture(t *testing.T, mutate ...func(*carebook.Config)) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	stub, err := stubapi.New(stubapi.Config{Secret: []byte("0123456789abcdef0123"), BcryptCost: bcrypt.MinCost, PageLimit: 2}, log)
	require.NoError(t, err)
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)

	cfg := carebook.DefaultConfig()
	cfg.Session.CookieSecure = false
	cfg.API.BaseURL = ts.URL + "/api/v1"
	cfg.API.MaxAttempts = 1
	cfg.API.InitialInterval = time.Millisecond
	cfg.API.MaxInterval = time.Millisecond
	cfg.Metrics.Enabled = true
	for _, m := range mutate {
		m(&cfg)
	}

	b := carebook.New().WithConfig(cfg).WithLogger(log)
	if cfg.Session.Backend == carebook.BackendRedis || cfg.LoginThrottle.Enabled {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		b = b.WithRedis(client)
	}

	portal, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(portal.Close)

	rt, err := New(portal, log)
	require.NoError(t, err)

	return &fixture{stub: stub, engine: rt.SetUpRouter(), portal: portal}
}

// browser carries cookies between requests like a user agent would.
type browser struct {
	t       *testing.T
	f       *fixture
	cookies map[string]string
}

func (f *fixture) browser(t *testing.T) *browser {
	return &browser{t: t, f: f, cookies: map[string]string{}}
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	rec := httptest.NewRecorder()
	b.f.engine.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c.Value
	}
	return rec
}

func (b *browser) login(email, password, role string) {
	b.t.Helper()
	rec := b.post("/login", url.Values{"email": {email}, "password": {password}, "role": {role}})
	require.Equal(b.t, http.StatusSeeOther, rec.Code, rec.Body.String())
}

func futureSlot() string {
	return time.Now().Add(48 * time.Hour).Format(validation.DateTimeLayout)
}

func TestProtectedPageRedirectsAnonymousToLogin(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	rec := b.get("/patient/dashboard")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Contains(t, rec.Body.String(), "Loading...")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = b.get("/patient/dashboard?_rsc=abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))

	rec = b.get("/")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRegisterPatientLandsOnDashboard(t *testing.T) {
	f := newFixture(t)
	_, err := f.stub.SeedDoctor("Gregory House", "house@example.com", "secret1", "Neurology")
	require.NoError(t, err)

	b := f.browser(t)
	rec := b.get("/register")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Register as Patient")

	rec = b.post("/register", url.Values{
		"role":     {"patient"},
		"name":     {"Amy Pond"},
		"email":    {"amy@example.com"},
		"password": {"secret1"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/patient/dashboard?notice=registered", rec.Header().Get("Location"))

	rec = b.get("/patient/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome, Amy Pond!")
	assert.Contains(t, body, "Dr. Gregory House")
	assert.Contains(t, body, "Neurology")

	// The shell forwards a logged-in visitor away from login.
	rec = b.get("/login")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/patient/dashboard", rec.Header().Get("Location"))

	// A patient is sent to their own home from the doctor's.
	rec = b.get("/doctor/dashboard")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/patient/dashboard", rec.Header().Get("Location"))
}

func TestRegisterValidationErrors(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	rec := b.post("/register", url.Values{"role": {"doctor"}, "name": {"Who"}, "email": {"nope"}, "password": {"123"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "email must be a valid email address")
	assert.Contains(t, body, "password must be at least 6 characters")
	assert.Contains(t, body, "specialization is required")
	assert.Contains(t, body, "Cardiology")

	_, err := f.stub.SeedPatient("Rory", "rory@example.com", "secret1")
	require.NoError(t, err)
	rec = b.post("/register", url.Values{"role": {"patient"}, "name": {"Rory"}, "email": {"rory@example.com"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, b.cookies)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	_, err := f.stub.SeedPatient("Amy", "amy@example.com", "secret1")
	require.NoError(t, err)
	b := f.browser(t)

	rec := b.post("/login", url.Values{"email": {"amy"}, "password": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "email must be a valid email address")
	assert.Contains(t, rec.Body.String(), "password is required")

	rec = b.post("/login", url.Values{"email": {"amy@example.com"}, "password": {"wrong!"}, "role": {"PATIENT"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Login failed. Please check your credentials.")
	assert.Empty(t, b.cookies)

	// Wrong role for valid credentials.
	rec = b.post("/login", url.Values{"email": {"amy@example.com"}, "password": {"secret1"}, "role": {"DOCTOR"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookAndCancelAppointment(t *testing.T) {
	f := newFixture(t)
	doctorID, err := f.stub.SeedDoctor("Beverly Crusher", "crusher@example.com", "secret1", "General Medicine")
	require.NoError(t, err)
	_, err = f.stub.SeedPatient("Amy", "amy@example.com", "secret1")
	require.NoError(t, err)

	b := f.browser(t)
	b.login("amy@example.com", "secret1", "PATIENT")

	rec := b.post("/patient/appointments", url.Values{"doctor_id": {doctorID}, "date": {"2001-01-01T10:00"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "date must be a future date and time")

	rec = b.post("/patient/appointments?search=crusher", url.Values{"doctor_id": {doctorID}, "date": {futureSlot()}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/patient/dashboard?notice=booked&search=crusher", rec.Header().Get("Location"))

	rec = b.get("/patient/dashboard?notice=booked")
	assert.Contains(t, rec.Body.String(), "Appointment booked successfully!")

	rec = b.get("/patient/appointments?status=pending")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Dr. Beverly Crusher")
	assert.Contains(t, body, "PENDING")

	start := strings.Index(body, "/patient/appointments/")
	require.NotEqual(t, -1, start)
	id := strings.SplitN(body[start+len("/patient/appointments/"):], "/", 2)[0]
	require.NotEmpty(t, id)

	rec = b.post("/patient/appointments/"+id+"/cancel?status=PENDING", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/patient/appointments?notice=cancelled&status=PENDING", rec.Header().Get("Location"))
	assert.Equal(t, "CANCELLED", f.stub.AppointmentStatus(id))

	rec = b.post("/patient/appointments/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Only pending appointments can be updated")
}

func TestDoctorCompletesAppointment(t *testing.T) {
	f := newFixture(t)
	doctorID, err := f.stub.SeedDoctor("Leonard McCoy", "mccoy@example.com", "secret1", "General Medicine")
	require.NoError(t, err)
	_, err = f.stub.SeedPatient("Amy", "amy@example.com", "secret1")
	require.NoError(t, err)

	patient := f.browser(t)
	patient.login("amy@example.com", "secret1", "PATIENT")
	rec := patient.post("/patient/appointments", url.Values{"doctor_id": {doctorID}, "date": {futureSlot()}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	doctor := f.browser(t)
	doctor.login("mccoy@example.com", "secret1", "DOCTOR")

	rec = doctor.get("/doctor/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome, Dr. Leonard McCoy!")
	assert.Contains(t, body, "amy@example.com")

	start := strings.Index(body, "/doctor/appointments/")
	require.NotEqual(t, -1, start)
	id := strings.SplitN(body[start+len("/doctor/appointments/"):], "/", 2)[0]

	rec = doctor.post("/doctor/appointments/"+id+"/status", url.Values{"status": {"ARCHIVED"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doctor.post("/doctor/appointments/"+id+"/status", url.Values{"status": {"COMPLETED"}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/doctor/dashboard?notice=completed", rec.Header().Get("Location"))
	assert.Equal(t, "COMPLETED", f.stub.AppointmentStatus(id))

	// A doctor cannot open patient pages.
	rec = doctor.get("/patient/appointments")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/doctor/dashboard", rec.Header().Get("Location"))
}

func TestRejectedCredentialEndsSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.stub.SeedPatient("Amy", "amy@example.com", "secret1")
	require.NoError(t, err)

	b := f.browser(t)
	b.login("amy@example.com", "secret1", "PATIENT")
	require.NotEmpty(t, b.cookies)

	f.stub.Fail("/doctors", http.StatusUnauthorized, 1)
	rec := b.get("/patient/dashboard")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?notice=expired", rec.Header().Get("Location"))
	assert.Empty(t, b.cookies)

	rec = b.get("/login?notice=expired")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your session has expired")
}

func TestUpstreamFailureIsReported(t *testing.T) {
	f := newFixture(t)
	_, err := f.stub.SeedPatient("Amy", "amy@example.com", "secret1")
	require.NoError(t, err)

	b := f.browser(t)
	b.login("amy@example.com", "secret1", "PATIENT")

	f.stub.Fail("/appointments/patient", http.StatusServiceUnavailable, 1)
	rec := b.get("/patient/appointments")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "injected failure")
	assert.NotEmpty(t, b.cookies, "an upstream outage must not end the session")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	_, err := f.stub.SeedPatient("Amy", "amy@example.com", "secret1")
	require.NoError(t, err)

	b := f.browser(t)
	b.login("amy@example.com", "secret1", "PATIENT")

	rec := b.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?notice=logout", rec.Header().Get("Location"))
	assert.Empty(t, b.cookies)

	rec = b.get("/patient/dashboard")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	rec := b.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	b.get("/patient/dashboard")
	rec = b.get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "carebook_guard_redirect_total")
}

func TestPaginate(t *testing.T) {
	p := paginate("/doctor/dashboard", url.Values{"status": {"PENDING"}, "notice": {"completed"}}, apiclient.Page{Page: 2, TotalPages: 3})
	require.Len(t, p.Links, 3)
	assert.True(t, p.Links[1].Current)
	assert.Equal(t, "/doctor/dashboard?page=1&status=PENDING", string(p.Prev))
	assert.Equal(t, "/doctor/dashboard?page=3&status=PENDING", string(p.Next))

	single := paginate("/doctor/dashboard", nil, apiclient.Page{Page: 1, TotalPages: 1})
	assert.Empty(t, single.Links)
}

func TestPaginateWindowsLargePageCounts(t *testing.T) {
	numbers := func(p pager) []int {
		var out []int
		for _, l := range p.Links {
			if l.Gap {
				out = append(out, 0)
				continue
			}
			out = append(out, l.Number)
		}
		return out
	}

	huge := paginate("/patient/appointments", nil, apiclient.Page{Page: 500, TotalPages: 1 << 30})
	assert.Equal(t, []int{1, 0, 497, 498, 499, 500, 501, 502, 503, 0, 1 << 30}, numbers(huge))
	assert.True(t, huge.Links[5].Current)

	start := paginate("/patient/appointments", nil, apiclient.Page{Page: 1, TotalPages: 20})
	assert.Equal(t, []int{1, 2, 3, 4, 0, 20}, numbers(start))
	assert.Empty(t, start.Prev)

	beyond := paginate("/patient/appointments", nil, apiclient.Page{Page: 99, TotalPages: 5})
	assert.Equal(t, []int{1, 2, 3, 4, 5}, numbers(beyond))
	assert.True(t, beyond.Links[4].Current)
	assert.Empty(t, beyond.Next)

	two := paginate("/patient/appointments", nil, apiclient.Page{Page: 1, TotalPages: 2})
	assert.Equal(t, []int{1, 2}, numbers(two))
}

func TestRedisBackedSession(t *testing.T) {
	f := newFixture(t, func(cfg *carebook.Config) {
		cfg.Session.Backend = carebook.BackendRedis
	})
	_, err := f.stub.SeedDoctor("Julian Bashir", "bashir@example.com", "secret1", "Pediatrics")
	require.NoError(t, err)

	b := f.browser(t)
	require.Equal(t, http.StatusOK, b.get("/login").Code)
	anonymous := b.cookies["cb_sid"]
	require.NotEmpty(t, anonymous)

	b.login("bashir@example.com", "secret1", "DOCTOR")
	require.Len(t, b.cookies, 1, "only the session id travels to the browser")
	assert.NotEqual(t, anonymous, b.cookies["cb_sid"], "login must replace the pre-login session id")

	stale := f.browser(t)
	stale.cookies["cb_sid"] = anonymous
	rec := stale.get("/doctor/dashboard")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = b.get("/doctor/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome, Dr. Julian Bashir!")

	loggedIn := b.cookies["cb_sid"]
	assert.Equal(t, http.StatusSeeOther, b.post("/logout", nil).Code)
	assert.NotEqual(t, loggedIn, b.cookies["cb_sid"], "logout must replace the session id")

	rec = b.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginThrottle(t *testing.T) {
	f := newFixture(t, func(cfg *carebook.Config) {
		cfg.LoginThrottle.Enabled = true
		cfg.LoginThrottle.MaxAttempts = 2
	})
	_, err := f.stub.SeedPatient("Amy", "amy@example.com", "secret1")
	require.NoError(t, err)
	b := f.browser(t)

	wrong := url.Values{"email": {"amy@example.com"}, "password": {"nope!!"}, "role": {"PATIENT"}}
	assert.Equal(t, http.StatusUnauthorized, b.post("/login", wrong).Code)
	assert.Equal(t, http.StatusUnauthorized, b.post("/login", wrong).Code)

	rec := b.post("/login", url.Values{"email": {"amy@example.com"}, "password": {"secret1"}, "role": {"PATIENT"}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many failed login attempts")
	assert.Empty(t, b.cookies)
}
