package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned by [Inspector.Check] for a JWT past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned when a verifying inspector rejects a token.
	ErrTokenInvalid = errors.New("token invalid")
)

// Inspector pre-checks bearer tokens before protected calls.
//
// Without a [Manager] it only reads the exp claim of JWT-shaped tokens. With one it
// verifies the signature too.
type Inspector struct {
	manager *Manager
	leeway  time.Duration
	now     func() time.Time
}

// NewInspector returns an Inspector. m may be nil.
func NewInspector(m *Manager, leeway time.Duration) *Inspector {
	return &Inspector{manager: m, leeway: leeway, now: time.Now}
}

// LooksLikeJWT reports whether token has the three-segment compact form.
func LooksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2 && !strings.ContainsAny(token, " \t")
}

// Check returns nil when token may be sent upstream.
func (i *Inspector) Check(token string) error {
	if i == nil || !LooksLikeJWT(token) {
		return nil
	}

	if i.manager != nil {
		if _, err := i.manager.Parse(token); err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return ErrTokenExpired
			}
			return ErrTokenInvalid
		}
		return nil
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		// Dotted but not a JWT: opaque to us.
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	if !i.now().Before(claims.ExpiresAt.Time.Add(i.leeway)) {
		return ErrTokenExpired
	}
	return nil
}
