package session

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	// DefaultAccessTokenKey is the storage key of the access token.
	DefaultAccessTokenKey = "nextauth.token"
	// DefaultRefreshTokenKey is the storage key of the refresh token.
	DefaultRefreshTokenKey = "nextauth.refreshToken"
	// DefaultMaxAge is the persistence lifetime applied to both artifacts.
	DefaultMaxAge = 30 * 24 * time.Hour
	// DefaultPath is the cookie path applied to both artifacts.
	DefaultPath = "/"
)

// ErrInvalidKey is returned when a store operation receives an empty key.
var ErrInvalidKey = errors.New("invalid session key")

// ErrStoreUnavailable is returned when the backing store cannot be reached.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Tokens defines the session held by a store.
//
// Tokens instances are plain values; an empty field means the artifact is absent.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Keys names the two artifacts inside a store.
type Keys struct {
	AccessToken  string
	RefreshToken string
}

// DefaultKeys returns the artifact names used when none are configured.
func DefaultKeys() Keys {
	return Keys{
		AccessToken:  DefaultAccessTokenKey,
		RefreshToken: DefaultRefreshTokenKey,
	}
}

// WriteOptions controls the lifetime and cookie attributes of a written value.
// Non-cookie stores only honour MaxAge.
type WriteOptions struct {
	MaxAge   time.Duration
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// Context scopes store operations. Cookie stores use Jar, or Request and Writer
// when no Jar is set. Ambient stores (memory, redis) use Scope.
type Context struct {
	Request *http.Request
	Writer  http.ResponseWriter
	Jar     CookieJar
	Scope   string
}

// HTTP returns a Context bound to a net/http exchange.
func HTTP(w http.ResponseWriter, r *http.Request) Context {
	return Context{Request: r, Writer: w}
}

// Ambient returns a Context for stores keyed by scope rather than by request.
func Ambient(scope string) Context {
	return Context{Scope: scope}
}

// Store reads, writes, and deletes named values against a Context.
//
// Implementations must provide read-after-write consistency within one Context.
type Store interface {
	Read(ctx context.Context, sc Context, keys ...string) (map[string]string, error)
	Write(ctx context.Context, sc Context, key, value string, opts WriteOptions) error
	Delete(ctx context.Context, sc Context, key string) error
}

// ReadTokens loads both artifacts from store.
func ReadTokens(ctx context.Context, store Store, sc Context, keys Keys) (Tokens, error) {
	values, err := store.Read(ctx, sc, keys.AccessToken, keys.RefreshToken)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:  values[keys.AccessToken],
		RefreshToken: values[keys.RefreshToken],
	}, nil
}

// WriteTokens persists both artifacts. An empty RefreshToken leaves the stored
// refresh token untouched.
func WriteTokens(ctx context.Context, store Store, sc Context, keys Keys, tokens Tokens, opts WriteOptions) error {
	if err := store.Write(ctx, sc, keys.AccessToken, tokens.AccessToken, opts); err != nil {
		return err
	}
	if tokens.RefreshToken == "" {
		return nil
	}
	return store.Write(ctx, sc, keys.RefreshToken, tokens.RefreshToken, opts)
}

// DeleteTokens removes both artifacts. Both deletions are attempted; the
// returned error joins any failures.
func DeleteTokens(ctx context.Context, store Store, sc Context, keys Keys) error {
	return errors.Join(
		store.Delete(ctx, sc, keys.AccessToken),
		store.Delete(ctx, sc, keys.RefreshToken),
	)
}
