package session

import "strings"

// Role determines which views a user may open.
type Role string

const (
	// RolePatient books appointments.
	RolePatient Role = "PATIENT"
	// RoleDoctor manages the appointments booked with them.
	RoleDoctor Role = "DOCTOR"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// ParseRole normalizes s into a Role. Unknown values return false.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// User is the account record returned by the remote API on login or registration.
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Role           Role   `json:"role"`
	PhotoURL       string `json:"photo_url,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

// WellFormed reports whether u can back an authenticated session.
func (u *User) WellFormed() bool {
	return u != nil && strings.TrimSpace(u.ID) != "" && u.Role.Valid()
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// State is a point-in-time copy of the session.
//
// IsAuthenticated is stored, but always equals Token != "" && User != nil.
type State struct {
	Token           string
	User            *User
	IsAuthenticated bool
}

// Role returns the user's role, or "" when no user is present.
func (s State) Role() Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

func clearedState() State {
	return State{}
}
