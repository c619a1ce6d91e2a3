package apiclient

import "github.com/MrEthical07/carebook/session"

// Appointment statuses.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     session.Role `json:"role"`
}

// PatientRegistration is the body of POST /auth/register/patient.
type PatientRegistration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// DoctorRegistration is the body of POST /auth/register/doctor.
type DoctorRegistration struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Specialization string `json:"specialization"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

// AuthResponse is returned by every authentication endpoint.
type AuthResponse struct {
	Token string        `json:"token"`
	User  *session.User `json:"user"`
}

type Doctor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Specialization string `json:"specialization"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

// DoctorsQuery filters GET /doctors. Zero values are omitted.
type DoctorsQuery struct {
	Page           int
	Limit          int
	Search         string
	Specialization string
}

// Page carries the pagination envelope shared by list endpoints.
type Page struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type DoctorsPage struct {
	Doctors []Doctor `json:"doctors"`
	Page
}

// Party is the embedded doctor or patient summary on an appointment.
type Party struct {
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

type Appointment struct {
	ID        string `json:"id"`
	DoctorID  string `json:"doctorId,omitempty"`
	PatientID string `json:"patientId,omitempty"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Doctor    *Party `json:"doctor,omitempty"`
	Patient   *Party `json:"patient,omitempty"`
}

type AppointmentsPage struct {
	Appointments []Appointment `json:"appointments"`
	Page
}

// PatientAppointmentsQuery filters GET /appointments/patient.
type PatientAppointmentsQuery struct {
	Status string
	Page   int
}

// DoctorAppointmentsQuery filters GET /appointments/doctor. Date is YYYY-MM-DD.
type DoctorAppointmentsQuery struct {
	Status string
	Date   string
	Page   int
}

// NewAppointment is the body of POST /appointments.
type NewAppointment struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
}

// StatusUpdate is the body of PATCH /appointments/update-status.
type StatusUpdate struct {
	Status        string `json:"status"`
	AppointmentID string `json:"appointment_id"`
}

type specializationsEnvelope struct {
	Data []string `json:"data"`
}
