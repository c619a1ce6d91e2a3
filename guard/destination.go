package guard

import "github.com/MrEthical07/carebook/session"

// Destination is a logical navigation target.
type Destination int

const (
	None Destination = iota
	Login
	Register
	PatientHome
	DoctorHome
)

func (d Destination) String() string {
	switch d {
	case None:
		return "none"
	case Login:
		return "login"
	case Register:
		return "register"
	case PatientHome:
		return "patient_home"
	case DoctorHome:
		return "doctor_home"
	default:
		return "unknown"
	}
}

// Routes maps destinations to URLs.
type Routes map[Destination]string

// DefaultRoutes returns the portal's URL layout.
func DefaultRoutes() Routes {
	return Routes{
		Login:       "/login",
		Register:    "/register",
		PatientHome: "/patient/dashboard",
		DoctorHome:  "/doctor/dashboard",
	}
}

// URL returns the path for d, or "" for [None] and unmapped destinations.
func (r Routes) URL(d Destination) string {
	return r[d]
}

// HomeFor returns the landing view for role. Only PATIENT maps to the patient home.
func HomeFor(role session.Role) Destination {
	if role == session.RolePatient {
		return PatientHome
	}
	return DoctorHome
}
