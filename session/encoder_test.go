package session

import (
	"errors"
	"testing"
)

func TestDecodeUserOptionalFields(t *testing.T) {
	u, err := DecodeUser(`{"id":"7","name":"Dr. Lee","role":"DOCTOR","specialization":"Dermatology","photo_url":"https://img/7.png"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Email != "" || u.Specialization != "Dermatology" || u.PhotoURL != "https://img/7.png" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestDecodeUserEmptyMarkers(t *testing.T) {
	for _, raw := range []string{"", "  ", "undefined", "null"} {
		if _, err := DecodeUser(raw); !errors.Is(err, ErrRecordEmpty) {
			t.Fatalf("%q: expected ErrRecordEmpty, got %v", raw, err)
		}
	}
}

func TestEncodeUserRejectsMalformed(t *testing.T) {
	if _, err := EncodeUser(&User{Name: "no id", Role: RolePatient}); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole(" doctor "); !ok || r != RoleDoctor {
		t.Fatalf("expected DOCTOR, got %q %v", r, ok)
	}
	if _, ok := ParseRole("admin"); ok {
		t.Fatalf("admin must not parse")
	}
}
