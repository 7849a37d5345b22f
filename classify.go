package goAuthClient

import (
	"errors"
	"net/http"
)

// Classification is the outcome of inspecting a failed exchange.
type Classification uint8

const (
	// NotUnauthorized covers every failure that is not an HTTP 401.
	NotUnauthorized Classification = iota
	// TokenExpired is a 401 carrying the renewable error code.
	TokenExpired
	// OtherUnauthorized is any other 401.
	OtherUnauthorized
)

func (c Classification) String() string {
	switch c {
	case TokenExpired:
		return "token_expired"
	case OtherUnauthorized:
		return "other_unauthorized"
	default:
		return "not_unauthorized"
	}
}

// Classify inspects the *ResponseError in err's chain, if any. Errors without
// one, including transport failures, are NotUnauthorized.
func Classify(err error) Classification {
	var rerr *ResponseError
	if err == nil || !errors.As(err, &rerr) || rerr.StatusCode != http.StatusUnauthorized {
		return NotUnauthorized
	}
	if rerr.expired {
		return TokenExpired
	}
	return OtherUnauthorized
}
