// Package stubapi is an in-memory implementation of the remote appointment API. It backs
// local development (carebook stub-api) and the portal's end-to-end tests.
package stubapi

import (
	"crypto/ed25519"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/carebook/jwt"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// DefaultSpecializations seeds GET /specializations.
var DefaultSpecializations = []string{
	"Cardiology",
	"Dermatology",
	"General Medicine",
	"Neurology",
	"Orthopedics",
	"Pediatrics",
}

type Config struct {
	Secret []byte
	// SigningKey, when set, signs tokens with Ed25519 instead of HS256 over Secret.
	SigningKey      ed25519.PrivateKey
	TokenTTL        time.Duration
	BcryptCost      int
	PageLimit       int
	Specializations []string
}

type account struct {
	ID             string
	Name           string
	Email          string
	Role           string
	PhotoURL       string
	Specialization string
	PasswordHash   []byte
}

func (a *account) user() gin.H {
	u := gin.H{"id": a.ID, "name": a.Name, "email": a.Email, "role": a.Role}
	if a.PhotoURL != "" {
		u["photo_url"] = a.PhotoURL
	}
	if a.Specialization != "" {
		u["specialization"] = a.Specialization
	}
	return u
}

type appointment struct {
	ID        string
	DoctorID  string
	PatientID string
	Date      time.Time
	Status    string
	CreatedAt time.Time
}

type fault struct {
	status int
	left   int
}

// Server holds the in-memory state. It is safe for concurrent use.
type Server struct {
	cfg    Config
	tokens *jwt.Manager
	log    logrus.FieldLogger
	now    func() time.Time

	mu           sync.RWMutex
	accounts     map[string]*account
	byEmail      map[string]string
	appointments map[string]*appointment
	specs        []string
	faults       map[string]*fault
}

// New builds a Server. A zero TokenTTL defaults to 7 days.
func New(cfg Config, log logrus.FieldLogger) (*Server, error) {
	if cfg.SigningKey == nil && len(cfg.Secret) < 16 {
		return nil, errors.New("stub API secret must be at least 16 bytes")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 10
	}
	if len(cfg.Specializations) == 0 {
		cfg.Specializations = DefaultSpecializations
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	signing := jwt.Config{
		AccessTTL:     cfg.TokenTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cfg.Secret,
		Issuer:        "carebook-stub",
	}
	if cfg.SigningKey != nil {
		signing.SigningMethod = jwt.MethodEd25519
		signing.PrivateKey = cfg.SigningKey
	}
	tokens, err := jwt.NewManager(signing)
	if err != nil {
		return nil, err
	}

	specs := append([]string(nil), cfg.Specializations...)
	sort.Strings(specs)

	return &Server{
		cfg:          cfg,
		tokens:       tokens,
		log:          log,
		now:          time.Now,
		accounts:     make(map[string]*account),
		byEmail:      make(map[string]string),
		appointments: make(map[string]*appointment),
		specs:        specs,
		faults:       make(map[string]*fault),
	}, nil
}

// Tokens exposes the signer so callers can verify issued tokens.
func (s *Server) Tokens() *jwt.Manager {
	return s.tokens
}

// Fail makes the next times requests to path (relative to /api/v1) answer status.
func (s *Server) Fail(path string, status, times int) {
	s.mu.Lock()
	s.faults[path] = &fault{status: status, left: times}
	s.mu.Unlock()
}

// Handler returns the gin engine serving /api/v1.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog(), s.injectFaults())

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", s.login)
	v1.POST("/auth/register/patient", s.registerPatient)
	v1.POST("/auth/register/doctor", s.registerDoctor)
	v1.GET("/specializations", s.specializations)

	protected := v1.Group("")
	protected.Use(s.authenticate())
	{
		protected.GET("/doctors", s.doctors)
		protected.GET("/appointments/patient", s.requireRole("PATIENT"), s.patientAppointments)
		protected.GET("/appointments/doctor", s.requireRole("DOCTOR"), s.doctorAppointments)
		protected.POST("/appointments", s.requireRole("PATIENT"), s.createAppointment)
		protected.PATCH("/appointments/update-status", s.updateStatus)
	}

	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("stub api request")
	}
}

func (s *Server) injectFaults() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Request.URL.Path, "/api/v1")

		s.mu.Lock()
		f, ok := s.faults[path]
		if ok {
			f.left--
			if f.left <= 0 {
				delete(s.faults, path)
			}
		}
		s.mu.Unlock()

		if ok {
			c.AbortWithStatusJSON(f.status, gin.H{"message": "injected failure"})
			return
		}
		c.Next()
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		const bearer = "Bearer "
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearer) || len(header) == len(bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}

		claims, err := s.tokens.Parse(header[len(bearer):])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		s.mu.RLock()
		acc, ok := s.accounts[claims.UserID]
		s.mu.RUnlock()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Account no longer exists"})
			return
		}

		c.Set("account", acc)
		c.Next()
	}
}

func (s *Server) requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if current(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Access denied"})
			return
		}
		c.Next()
	}
}

func current(c *gin.Context) *account {
	acc, _ := c.MustGet("account").(*account)
	return acc
}
