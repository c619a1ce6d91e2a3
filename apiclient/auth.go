package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// Login exchanges credentials for a token and user. It does not touch the bound session;
// the caller decides whether to log in with the result.
func (b *Bound) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	return b.authenticate(ctx, "login", "/auth/login", req)
}

func (b *Bound) RegisterPatient(ctx context.Context, req PatientRegistration) (*AuthResponse, error) {
	return b.authenticate(ctx, "register_patient", "/auth/register/patient", req)
}

func (b *Bound) RegisterDoctor(ctx context.Context, req DoctorRegistration) (*AuthResponse, error) {
	return b.authenticate(ctx, "register_doctor", "/auth/register/doctor", req)
}

func (b *Bound) authenticate(ctx context.Context, name, path string, body interface{}) (*AuthResponse, error) {
	var out AuthResponse
	err := b.do(ctx, call{
		name:   name,
		method: http.MethodPost,
		path:   path,
		body:   body,
		out:    &out,
		auth:   authNone,
	})
	if err != nil {
		return nil, err
	}
	if out.Token == "" || !out.User.WellFormed() {
		return nil, fmt.Errorf("%w: %s returned no usable session", ErrInvalidResponse, name)
	}
	return &out, nil
}
