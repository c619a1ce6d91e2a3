// Package web serves the portal's pages: login and registration, the patient and doctor
// dashboards, plus health and metrics endpoints.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/apiclient"
	"github.com/MrEthical07/carebook/guard"
	"github.com/MrEthical07/carebook/internal/logging"
	"github.com/MrEthical07/carebook/internal/rate"
	promexport "github.com/MrEthical07/carebook/metrics/export/prometheus"
	"github.com/MrEthical07/carebook/middleware"
	"github.com/MrEthical07/carebook/session"
	"github.com/MrEthical07/carebook/validation"
)

const healthTimeout = 2 * time.Second

// Router wires the portal's pages onto a gin engine.
type Router struct {
	Portal *carebook.Portal
	Logger logrus.FieldLogger

	validate  *validation.Validator
	templates *template.Template
	metrics   http.Handler
	throttle  *rate.Limiter
}

// New parses the page templates and, when metrics are enabled, builds the Prometheus
// exporter served on the configured path.
func New(portal *carebook.Portal, log logrus.FieldLogger) (*Router, error) {
	if portal == nil {
		return nil, errors.New("web: nil portal")
	}
	if log == nil {
		log = portal.Logger()
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	rt := &Router{
		Portal:    portal,
		Logger:    log,
		validate:  validation.New(),
		templates: tmpl,
	}

	cfg := portal.Config()
	if cfg.LoginThrottle.Enabled && portal.Redis() != nil {
		rt.throttle = rate.New(portal.Redis(), rate.Config{
			Prefix:      cfg.Redis.Prefix,
			MaxAttempts: cfg.LoginThrottle.MaxAttempts,
			Window:      cfg.LoginThrottle.Window,
			PerIP:       cfg.LoginThrottle.PerIP,
		})
	}

	if cfg.Metrics.Enabled {
		exporter, err := promexport.NewPrometheusExporter(portal)
		if err != nil {
			return nil, fmt.Errorf("build metrics exporter: %w", err)
		}
		rt.metrics = exporter.Handler()
	}
	return rt, nil
}

// SetUpRouter returns the engine serving every portal route.
func (rt *Router) SetUpRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(rt.Logger))
	r.SetHTMLTemplate(rt.templates)

	opts := []middleware.Option{middleware.WithPlaceholder(rt.placeholder)}
	shell := middleware.GinShell(rt.Portal, opts...)

	r.GET("/", shell, rt.index)
	r.GET("/login", shell, rt.loginPage)
	r.POST("/login", shell, rt.login)
	r.GET("/register", shell, rt.registerPage)
	r.POST("/register", shell, rt.register)
	r.POST("/logout", middleware.GinSession(rt.Portal, opts...), rt.logout)

	patient := r.Group("/patient", middleware.GinGuard(rt.Portal, session.RolePatient, opts...))
	{
		patient.GET("/dashboard", rt.patientDashboard)
		patient.POST("/appointments", rt.bookAppointment)
		patient.GET("/appointments", rt.patientAppointments)
		patient.POST("/appointments/:id/cancel", rt.cancelAppointment)
	}

	doctor := r.Group("/doctor", middleware.GinGuard(rt.Portal, session.RoleDoctor, opts...))
	{
		doctor.GET("/dashboard", rt.doctorDashboard)
		doctor.POST("/appointments/:id/status", rt.updateAppointmentStatus)
	}

	r.GET("/healthz", rt.health)
	if rt.metrics != nil {
		r.GET(rt.Portal.Config().Metrics.Path, gin.WrapH(rt.metrics))
	}

	return r
}

// index only runs for visitors the shell did not forward home.
func (rt *Router) index(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, rt.Portal.URL(guard.Login))
}

func (rt *Router) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := rt.Portal.Health(ctx); err != nil {
		logging.FromGin(c, rt.Logger).WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// page returns the request's page. The session middleware guarantees one on every
// route that calls it.
func (rt *Router) page(c *gin.Context) *carebook.Page {
	page, ok := middleware.PageFromGin(c)
	if !ok {
		panic("web: route mounted without session middleware")
	}
	return page
}

// unauthorized handles a rejected credential: the API client has already logged the
// session out, so the mounted guard has navigated to the login page. Internal fetches
// get the placeholder instead.
func (rt *Router) unauthorized(c *gin.Context, page *carebook.Page, err error) bool {
	if !errors.Is(err, apiclient.ErrUnauthorized) && !errors.Is(err, apiclient.ErrNoSession) {
		return false
	}

	target, ok := middleware.Redirect(c.Request.Context())
	if !ok {
		if page.Internal {
			rt.placeholder(c.Writer, c.Request, http.StatusUnauthorized)
			c.Abort()
			return true
		}
		target = rt.Portal.URL(guard.Login)
	}

	logging.FromGin(c, rt.Logger).WithError(err).Info("session rejected by api, sending to login")
	c.Redirect(http.StatusSeeOther, withNotice(target, noticeExpired))
	c.Abort()
	return true
}

// apiStatus maps an upstream failure to the status of the page reporting it.
func apiStatus(err error) int {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}
