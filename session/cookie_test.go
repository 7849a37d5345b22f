package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestCookieStoreReadsRequestCookies(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultAccessTokenKey, Value: "T1"})
	r.AddCookie(&http.Cookie{Name: "other", Value: "x"})

	store := NewCookieStore()
	tokens, err := ReadTokens(context.Background(), store, HTTP(httptest.NewRecorder(), r), DefaultKeys())
	if err != nil {
		t.Fatalf("read tokens: %v", err)
	}
	if tokens.AccessToken != "T1" {
		t.Fatalf("expected access token T1, got %q", tokens.AccessToken)
	}
	if tokens.RefreshToken != "" {
		t.Fatalf("expected no refresh token, got %q", tokens.RefreshToken)
	}
}

func TestCookieStoreWriteSetsCookieAndIsReadable(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultAccessTokenKey, Value: "T1"})
	w := httptest.NewRecorder()
	sc := HTTP(w, r)

	store := &CookieStore{Clock: fixedClock}
	opts := WriteOptions{MaxAge: DefaultMaxAge, Path: DefaultPath}
	err := WriteTokens(context.Background(), store, sc, DefaultKeys(), Tokens{AccessToken: "T2", RefreshToken: "RT2"}, opts)
	if err != nil {
		t.Fatalf("write tokens: %v", err)
	}

	got, err := ReadTokens(context.Background(), store, sc, DefaultKeys())
	if err != nil {
		t.Fatalf("read tokens: %v", err)
	}
	if got.AccessToken != "T2" || got.RefreshToken != "RT2" {
		t.Fatalf("expected T2/RT2 after write, got %q/%q", got.AccessToken, got.RefreshToken)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 Set-Cookie headers, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.Path != "/" {
			t.Fatalf("expected path /, got %q", c.Path)
		}
		if c.MaxAge != 30*24*60*60 {
			t.Fatalf("expected 30 day max age, got %d", c.MaxAge)
		}
	}
}

func TestCookieStoreDeleteExpiresCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultAccessTokenKey, Value: "T1"})
	r.AddCookie(&http.Cookie{Name: DefaultRefreshTokenKey, Value: "RT1"})
	w := httptest.NewRecorder()
	sc := HTTP(w, r)
	store := NewCookieStore()

	if err := DeleteTokens(context.Background(), store, sc, DefaultKeys()); err != nil {
		t.Fatalf("delete tokens: %v", err)
	}

	got, err := ReadTokens(context.Background(), store, sc, DefaultKeys())
	if err != nil {
		t.Fatalf("read tokens: %v", err)
	}
	if got != (Tokens{}) {
		t.Fatalf("expected empty tokens after delete, got %+v", got)
	}
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Fatalf("expected expired cookie for %s, got max age %d", c.Name, c.MaxAge)
		}
	}
}

func TestCookieStoreWithoutRequestFails(t *testing.T) {
	store := NewCookieStore()
	_, err := store.Read(context.Background(), Context{}, DefaultAccessTokenKey)
	if !errors.Is(err, ErrNoCookieJar) {
		t.Fatalf("expected ErrNoCookieJar, got %v", err)
	}
	if err := store.Write(context.Background(), HTTP(nil, httptest.NewRequest(http.MethodGet, "/", nil)), "", "v", WriteOptions{}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

type mapJar map[string]string

func (j mapJar) Get(name string) (string, bool) {
	v, ok := j[name]
	return v, ok
}

func (j mapJar) Set(c *http.Cookie) { j[c.Name] = c.Value }

func (j mapJar) Clear(name, _ string) { delete(j, name) }

func TestCookieStorePrefersJar(t *testing.T) {
	jar := mapJar{DefaultAccessTokenKey: "J1"}
	store := NewCookieStore()
	sc := Context{Jar: jar}

	got, err := ReadTokens(context.Background(), store, sc, DefaultKeys())
	if err != nil {
		t.Fatalf("read tokens: %v", err)
	}
	if got.AccessToken != "J1" {
		t.Fatalf("expected J1, got %q", got.AccessToken)
	}
	if err := store.Write(context.Background(), sc, DefaultRefreshTokenKey, "JR", WriteOptions{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if jar[DefaultRefreshTokenKey] != "JR" {
		t.Fatalf("expected jar to receive write, got %q", jar[DefaultRefreshTokenKey])
	}
}
