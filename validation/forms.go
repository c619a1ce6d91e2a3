package validation

import "strings"

// LoginForm is submitted by the login page.
type LoginForm struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
	Role     string `json:"role" form:"role" validate:"required,role"`
}

// Normalize fills the default role and trims input.
func (f *LoginForm) Normalize() {
	f.Email = strings.TrimSpace(f.Email)
	f.Role = strings.ToUpper(strings.TrimSpace(f.Role))
	if f.Role == "" {
		f.Role = "PATIENT"
	}
}

// PatientRegisterForm is submitted by the patient registration page.
type PatientRegisterForm struct {
	Name     string `json:"name" form:"name" validate:"required,max=100"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
	PhotoURL string `json:"photo_url,omitempty" form:"photo_url" validate:"omitempty,url"`
}

func (f *PatientRegisterForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.PhotoURL = strings.TrimSpace(f.PhotoURL)
}

// DoctorRegisterForm adds the specialization to the patient fields.
type DoctorRegisterForm struct {
	Name           string `json:"name" form:"name" validate:"required,max=100"`
	Email          string `json:"email" form:"email" validate:"required,email"`
	Password       string `json:"password" form:"password" validate:"required,min=6"`
	Specialization string `json:"specialization" form:"specialization" validate:"required"`
	PhotoURL       string `json:"photo_url,omitempty" form:"photo_url" validate:"omitempty,url"`
}

func (f *DoctorRegisterForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Specialization = strings.TrimSpace(f.Specialization)
	f.PhotoURL = strings.TrimSpace(f.PhotoURL)
}

// BookingForm books a slot with a doctor.
type BookingForm struct {
	DoctorID string `json:"doctorId" form:"doctor_id" validate:"required"`
	Date     string `json:"date" form:"date" validate:"required,future"`
}

// StatusUpdateForm changes an appointment status.
type StatusUpdateForm struct {
	AppointmentID string `json:"appointment_id" form:"appointment_id" validate:"required"`
	Status        string `json:"status" form:"status" validate:"required,oneof=COMPLETED CANCELLED"`
}
