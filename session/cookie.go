package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrNoCookieJar is returned when a cookie operation has neither a Jar nor a
// request/response pair to work with.
var ErrNoCookieJar = errors.New("no cookie jar in session context")

// CookieJar is the cookie surface of one request/response exchange.
//
// Get must observe values previously passed to Set or Clear on the same jar.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(cookie *http.Cookie)
	Clear(name, path string)
}

// CookieStore stores session artifacts as HTTP cookies.
type CookieStore struct {
	// Clock can be used to override measurement of time in tests.
	Clock func() time.Time
}

// NewCookieStore returns a CookieStore using the wall clock.
func NewCookieStore() *CookieStore {
	return &CookieStore{Clock: time.Now}
}

// NewCookie returns a cookie carrying value with the attributes in opts.
// A non-positive MaxAge produces a session cookie.
func NewCookie(name, value string, opts WriteOptions, now time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		Domain:   opts.Domain,
		Secure:   opts.Secure,
		HttpOnly: opts.HTTPOnly,
		SameSite: opts.SameSite,
	}
	if opts.MaxAge > 0 {
		c.MaxAge = int(opts.MaxAge / time.Second)
		c.Expires = now.Add(opts.MaxAge)
	}
	return c
}

// Read returns only the keys that are present; absent cookies are omitted from the map.
func (s *CookieStore) Read(_ context.Context, sc Context, keys ...string) (map[string]string, error) {
	jar, err := jarFor(sc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if v, ok := jar.Get(key); ok && v != "" {
			out[key] = v
		}
	}
	return out, nil
}

// Write may return an error when the key is empty or the context carries no cookie surface.
func (s *CookieStore) Write(_ context.Context, sc Context, key, value string, opts WriteOptions) error {
	if key == "" {
		return ErrInvalidKey
	}
	jar, err := jarFor(sc)
	if err != nil {
		return err
	}
	jar.Set(NewCookie(key, value, opts, s.now()))
	return nil
}

// Delete expires the cookie at the default path and is idempotent.
func (s *CookieStore) Delete(_ context.Context, sc Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	jar, err := jarFor(sc)
	if err != nil {
		return err
	}
	jar.Clear(key, DefaultPath)
	return nil
}

func (s *CookieStore) now() time.Time {
	if s == nil || s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func jarFor(sc Context) (CookieJar, error) {
	if sc.Jar != nil {
		return sc.Jar, nil
	}
	if sc.Request == nil {
		return nil, ErrNoCookieJar
	}
	return &httpJar{r: sc.Request, w: sc.Writer}, nil
}

// httpJar mirrors every write back into the request's Cookie header so later
// reads in the same exchange see the new value.
type httpJar struct {
	r *http.Request
	w http.ResponseWriter
}

func (j *httpJar) Get(name string) (string, bool) {
	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (j *httpJar) Set(cookie *http.Cookie) {
	if j.w != nil {
		http.SetCookie(j.w, cookie)
	}
	j.replace(cookie.Name, cookie.Value, true)
}

func (j *httpJar) Clear(name, path string) {
	if j.w != nil {
		http.SetCookie(j.w, &http.Cookie{
			Name:    name,
			Value:   "",
			Path:    path,
			MaxAge:  -1,
			Expires: time.Unix(0, 0),
		})
	}
	j.replace(name, "", false)
}

func (j *httpJar) replace(name, value string, keep bool) {
	existing := j.r.Cookies()
	parts := make([]string, 0, len(existing)+1)
	for _, c := range existing {
		if c.Name == name {
			continue
		}
		parts = append(parts, (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	if keep {
		parts = append(parts, (&http.Cookie{Name: name, Value: value}).String())
	}
	if len(parts) == 0 {
		j.r.Header.Del("Cookie")
		return
	}
	j.r.Header.Set("Cookie", strings.Join(parts, "; "))
}
