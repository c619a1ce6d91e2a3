package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRecordEmpty is returned when a durable user entry holds an "empty" marker.
	ErrRecordEmpty = errors.New("user record empty")
	// ErrRecordCorrupt is returned when a durable user entry cannot be parsed into a well-formed user.
	ErrRecordCorrupt = errors.New("user record corrupt")
)

// Markers written by clients that serialized a missing value instead of omitting it.
var emptyMarkers = map[string]struct{}{
	"":          {},
	"undefined": {},
	"null":      {},
}

// EncodeUser serializes u into the text form kept under the "user" entry.
func EncodeUser(u *User) (string, error) {
	if !u.WellFormed() {
		return "", ErrInvalidUser
	}
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeUser parses a durable user entry. Empty markers yield [ErrRecordEmpty];
// anything that does not decode into a well-formed user yields [ErrRecordCorrupt].
func DecodeUser(raw string) (*User, error) {
	if _, ok := emptyMarkers[strings.TrimSpace(raw)]; ok {
		return nil, ErrRecordEmpty
	}

	var u User
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrRecordCorrupt)
	}
	if !u.WellFormed() {
		return nil, fmt.Errorf("%w: missing id or role", ErrRecordCorrupt)
	}

	return &u, nil
}
