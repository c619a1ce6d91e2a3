package session

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"
)

// CookieOptions controls the attributes of cookies written by [CookieStorage].
type CookieOptions struct {
	Prefix   string
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// DefaultCookieOptions returns production flags: secure transport only, strict cross-site policy.
func DefaultCookieOptions() CookieOptions {
	return CookieOptions{
		Path:     "/",
		Secure:   true,
		HTTPOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// CookieStorage is a [Storage] bound to one HTTP exchange. Reads come from the request
// cookies, writes go out as Set-Cookie headers, and writes made during the exchange are
// visible to later reads.
//
// Values are base64url encoded (JSON is not cookie-safe) or sealed when a [Sealer] is set.
type CookieStorage struct {
	r      *http.Request
	w      http.ResponseWriter
	opts   CookieOptions
	sealer *Sealer
	now    func() time.Time

	mu      sync.Mutex
	overlay map[string]*string
}

// NewCookieStorage binds a CookieStorage to r and w. sealer may be nil.
func NewCookieStorage(w http.ResponseWriter, r *http.Request, opts CookieOptions, sealer *Sealer) *CookieStorage {
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &CookieStorage{
		r:       r,
		w:       w,
		opts:    opts,
		sealer:  sealer,
		now:     time.Now,
		overlay: make(map[string]*string),
	}
}

func (c *CookieStorage) cookieName(key string) string {
	return c.opts.Prefix + key
}

func (c *CookieStorage) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	if v, ok := c.overlay[key]; ok {
		c.mu.Unlock()
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	c.mu.Unlock()

	cookie, err := c.r.Cookie(c.cookieName(key))
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", false, nil
		}
		return "", false, err
	}

	value, err := c.decode(key, cookie.Value)
	if err != nil {
		return "", true, err
	}
	return value, true, nil
}

func (c *CookieStorage) Set(_ context.Context, key, value string, ttl time.Duration) error {
	encoded, err := c.encode(key, value)
	if err != nil {
		return err
	}

	cookie := c.baseCookie(key)
	cookie.Value = encoded
	if ttl > 0 {
		cookie.MaxAge = int(ttl / time.Second)
		cookie.Expires = c.now().Add(ttl)
	}
	http.SetCookie(c.w, cookie)

	c.mu.Lock()
	v := value
	c.overlay[key] = &v
	c.mu.Unlock()
	return nil
}

func (c *CookieStorage) Delete(_ context.Context, key string) error {
	cookie := c.baseCookie(key)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(c.w, cookie)

	c.mu.Lock()
	c.overlay[key] = nil
	c.mu.Unlock()
	return nil
}

func (c *CookieStorage) baseCookie(key string) *http.Cookie {
	return &http.Cookie{
		Name:     c.cookieName(key),
		Path:     c.opts.Path,
		Domain:   c.opts.Domain,
		Secure:   c.opts.Secure,
		HttpOnly: c.opts.HTTPOnly,
		SameSite: c.opts.SameSite,
	}
}

func (c *CookieStorage) encode(key, value string) (string, error) {
	if c.sealer != nil {
		return c.sealer.Seal(key, value)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(value)), nil
}

func (c *CookieStorage) decode(key, value string) (string, error) {
	if c.sealer != nil {
		return c.sealer.Open(key, value)
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", ErrCorruptEntry
	}
	return string(raw), nil
}
