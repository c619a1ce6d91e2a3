package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealKeyInvalid is returned when a sealing key is not exactly 32 bytes.
var ErrSealKeyInvalid = errors.New("seal key must be 32 bytes")

// Sealer encrypts and authenticates cookie values with XChaCha20-Poly1305.
//
// The entry name is bound as additional data so a sealed token cannot be replayed
// as a user record.
type Sealer struct {
	key []byte
}

// NewSealer builds a Sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrSealKeyInvalid
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Sealer{key: k}, nil
}

// Seal returns the base64url form of nonce||ciphertext.
func (s *Sealer) Seal(name, plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("seal nonce: %w", err)
	}

	out := aead.Seal(nonce, nonce, []byte(plaintext), []byte(name))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Any tampering or wrong key yields [ErrCorruptEntry].
func (s *Sealer) Open(name, sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrCorruptEntry
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCorruptEntry
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return "", ErrCorruptEntry
	}
	return string(plain), nil
}
