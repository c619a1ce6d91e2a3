package stubapi

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var errEmailTaken = errors.New("email already registered")

func (s *Server) addAccount(acc account) (*account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[acc.Email]; taken {
		return nil, errEmailTaken
	}
	a := acc
	s.accounts[a.ID] = &a
	s.byEmail[a.Email] = a.ID

	if a.Specialization != "" {
		i := sort.SearchStrings(s.specs, a.Specialization)
		if i == len(s.specs) || s.specs[i] != a.Specialization {
			s.specs = append(s.specs, "")
			copy(s.specs[i+1:], s.specs[i:])
			s.specs[i] = a.Specialization
		}
	}
	return &a, nil
}

// SeedDoctor registers a doctor account directly and returns its id.
func (s *Server) SeedDoctor(name, email, password, specialization string) (string, error) {
	return s.seed(name, email, password, "DOCTOR", specialization)
}

// SeedPatient registers a patient account directly and returns its id.
func (s *Server) SeedPatient(name, email, password string) (string, error) {
	return s.seed(name, email, password, "PATIENT", "")
}

func (s *Server) seed(name, email, password, role, specialization string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	acc, err := s.addAccount(account{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          strings.ToLower(email),
		Role:           role,
		Specialization: specialization,
		PasswordHash:   hash,
	})
	if err != nil {
		return "", err
	}
	return acc.ID, nil
}

// AppointmentStatus returns the status of an appointment, or "" if unknown.
func (s *Server) AppointmentStatus(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.appointments[id]; ok {
		return a.Status
	}
	return ""
}

func paginate(total, page, limit int) (start, end, pages int) {
	if page < 1 {
		page = 1
	}
	pages = (total + limit - 1) / limit
	start = (page - 1) * limit
	if start > total {
		start = total
	}
	end = start + limit
	if end > total {
		end = total
	}
	return start, end, pages
}
