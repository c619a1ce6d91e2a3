package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// PatientAppointments lists the logged-in patient's appointments.
func (b *Bound) PatientAppointments(ctx context.Context, q PatientAppointmentsQuery) (*AppointmentsPage, error) {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	pageValues(values, q.Page)
	return b.appointments(ctx, "patient_appointments", "/appointments/patient", values)
}

// DoctorAppointments lists the logged-in doctor's appointments.
func (b *Bound) DoctorAppointments(ctx context.Context, q DoctorAppointmentsQuery) (*AppointmentsPage, error) {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.Date != "" {
		values.Set("date", q.Date)
	}
	pageValues(values, q.Page)
	return b.appointments(ctx, "doctor_appointments", "/appointments/doctor", values)
}

func (b *Bound) appointments(ctx context.Context, name, path string, values url.Values) (*AppointmentsPage, error) {
	var out AppointmentsPage
	err := b.do(ctx, call{
		name:   name,
		method: http.MethodGet,
		path:   path,
		query:  values,
		out:    &out,
		auth:   authRequired,
		retry:  true,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAppointment books a slot.
func (b *Bound) CreateAppointment(ctx context.Context, req NewAppointment) (*Appointment, error) {
	var out struct {
		Appointment
		Data *Appointment `json:"data,omitempty"`
	}
	err := b.do(ctx, call{
		name:   "create_appointment",
		method: http.MethodPost,
		path:   "/appointments",
		body:   req,
		out:    &out,
		auth:   authRequired,
		retry:  true,
	})
	if err != nil {
		return nil, err
	}
	if out.Data != nil {
		return out.Data, nil
	}
	return &out.Appointment, nil
}

// UpdateAppointmentStatus completes or cancels an appointment.
func (b *Bound) UpdateAppointmentStatus(ctx context.Context, req StatusUpdate) error {
	return b.do(ctx, call{
		name:   "update_appointment_status",
		method: http.MethodPatch,
		path:   "/appointments/update-status",
		body:   req,
		auth:   authRequired,
		retry:  true,
	})
}
