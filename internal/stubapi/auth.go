package stubapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type loginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=PATIENT DOCTOR"`
}

type registerInput struct {
	Name           string `json:"name" binding:"required,max=100"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=6"`
	PhotoURL       string `json:"photo_url" binding:"omitempty,url"`
	Specialization string `json:"specialization"`
}

func (s *Server) login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid input data"})
		return
	}

	s.mu.RLock()
	acc := s.accounts[s.byEmail[strings.ToLower(input.Email)]]
	s.mu.RUnlock()

	if acc == nil || acc.Role != input.Role || bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(input.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	s.respondWithToken(c, http.StatusOK, acc)
}

func (s *Server) registerPatient(c *gin.Context) {
	s.register(c, "PATIENT")
}

func (s *Server) registerDoctor(c *gin.Context) {
	s.register(c, "DOCTOR")
}

func (s *Server) register(c *gin.Context, role string) {
	var input registerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid input data"})
		return
	}
	input.Specialization = strings.TrimSpace(input.Specialization)
	if role == "DOCTOR" && input.Specialization == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Specialization is required"})
		return
	}
	if role == "PATIENT" {
		input.Specialization = ""
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to hash password"})
		return
	}

	acc, err := s.addAccount(account{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(input.Name),
		Email:          strings.ToLower(strings.TrimSpace(input.Email)),
		Role:           role,
		PhotoURL:       input.PhotoURL,
		Specialization: input.Specialization,
		PasswordHash:   hash,
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"message": "Email already registered"})
		return
	}

	s.respondWithToken(c, http.StatusCreated, acc)
}

func (s *Server) respondWithToken(c *gin.Context, status int, acc *account) {
	token, err := s.tokens.Issue(acc.ID, acc.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to generate access token"})
		return
	}
	c.JSON(status, gin.H{"token": token, "user": acc.user()})
}

func (s *Server) specializations(c *gin.Context) {
	s.mu.RLock()
	specs := append([]string(nil), s.specs...)
	s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{"data": specs})
}
