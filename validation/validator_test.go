package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedValidator(now time.Time) *Validator {
	v := New()
	v.now = func() time.Time { return now }
	return v
}

func TestLoginForm(t *testing.T) {
	v := New()

	f := LoginForm{Email: " amy@example.com ", Password: "secret"}
	f.Normalize()
	assert.Equal(t, "PATIENT", f.Role)
	assert.NoError(t, v.Struct(f))

	f.Role = "ADMIN"
	err := v.Struct(f)
	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "role must be PATIENT or DOCTOR", fe["role"])
}

func TestRegisterFormsReportJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Struct(DoctorRegisterForm{Email: "not-an-email", Password: "123", PhotoURL: "nope"})
	var fe FieldErrors
	require.True(t, errors.As(err, &fe))

	assert.Equal(t, "name is required", fe["name"])
	assert.Equal(t, "email must be a valid email address", fe["email"])
	assert.Equal(t, "password must be at least 6 characters", fe["password"])
	assert.Equal(t, "specialization is required", fe["specialization"])
	assert.Equal(t, "photo_url must be a valid URL", fe["photo_url"])

	assert.NoError(t, v.Struct(PatientRegisterForm{Name: "Amy", Email: "amy@example.com", Password: "secret1"}))
}

func TestBookingFormRequiresFutureSlot(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	v := fixedValidator(now)

	assert.NoError(t, v.Struct(BookingForm{DoctorID: "d1", Date: "2026-03-01T10:30"}))

	for _, date := range []string{"2026-03-01T09:30", "2026-03-01", "tomorrow"} {
		err := v.Struct(BookingForm{DoctorID: "d1", Date: date})
		var fe FieldErrors
		require.True(t, errors.As(err, &fe), date)
		assert.Contains(t, fe, "date", date)
	}
}

func TestStatusUpdateForm(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(StatusUpdateForm{AppointmentID: "a1", Status: "COMPLETED"}))

	err := v.Struct(StatusUpdateForm{AppointmentID: "a1", Status: "PENDING"})
	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "status must be one of COMPLETED CANCELLED", fe["status"])
}

func TestFieldErrorsMessageIsStable(t *testing.T) {
	fe := FieldErrors{"b": "b bad", "a": "a bad"}
	assert.Equal(t, "a bad; b bad", fe.Error())
}
