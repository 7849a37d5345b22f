package goAuthClient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches any exchange that ended with HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenExpired matches a 401 whose error code marks the access token as renewable.
	ErrTokenExpired = errors.New("access token expired")
	// ErrAuthToken is the signal raised in Rendering execution for non-renewable 401s.
	// The session guard converts it into a session reset and redirect.
	ErrAuthToken = errors.New("auth token error")
	// ErrRenewalFailed matches every error delivered to callers queued behind a failed renewal.
	ErrRenewalFailed = errors.New("token renewal failed")
	// ErrRenewalResponseInvalid is returned when the renewal endpoint answers without a token.
	ErrRenewalResponseInvalid = errors.New("renewal response missing token")
	// ErrEngineNotReady is returned when an Engine or Client was not built through Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrNilRequest is returned by Client.Do for a nil request.
	ErrNilRequest = errors.New("nil request")
	// ErrRenderClosed is returned by RenderContext.Client after the render finished.
	ErrRenderClosed = errors.New("render context closed")
	// ErrInvalidExecutionContext is returned for an unknown ExecutionContext value.
	ErrInvalidExecutionContext = errors.New("invalid execution context")
)

// ResponseError defines a completed exchange with a non-2xx status.
type ResponseError struct {
	StatusCode int
	// Code is the "code" field of a JSON error body, if any.
	Code      string
	Body      []byte
	Method    string
	Path      string
	RequestID string
	// expired is set by the client that produced the error, from its configured expiry code.
	expired bool
}

func (e *ResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: status %d (%s)", e.Method, e.Path, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Is matches ErrUnauthorized for 401 responses and ErrTokenExpired for renewable ones.
func (e *ResponseError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrTokenExpired:
		return e.StatusCode == http.StatusUnauthorized && e.expired
	}
	return false
}

// RenewalError wraps the raw failure of a renewal call. Unwrap returns that
// failure unchanged, so callers can still inspect a *ResponseError from the
// renewal endpoint with errors.As.
type RenewalError struct {
	Err error
}

func (e *RenewalError) Error() string {
	return ErrRenewalFailed.Error() + ": " + e.Err.Error()
}

func (e *RenewalError) Unwrap() error {
	return e.Err
}

func (e *RenewalError) Is(target error) bool {
	return target == ErrRenewalFailed
}

// AuthTokenError carries the exchange that raised [ErrAuthToken].
type AuthTokenError struct {
	Cause error
}

func (e *AuthTokenError) Error() string {
	return ErrAuthToken.Error() + ": " + e.Cause.Error()
}

func (e *AuthTokenError) Unwrap() error {
	return e.Cause
}

func (e *AuthTokenError) Is(target error) bool {
	return target == ErrAuthToken
}
