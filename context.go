package goAuthClient

import (
	"fmt"
	"strings"
)

// ExecutionContext selects how a Client reacts to a non-renewable 401.
type ExecutionContext uint8

const (
	// Interactive clients own the session: logout is performed directly.
	Interactive ExecutionContext = iota
	// Rendering clients run inside a server-render handler: logout is signalled with
	// ErrAuthToken and left to the session guard.
	Rendering
)

func (e ExecutionContext) String() string {
	switch e {
	case Interactive:
		return "interactive"
	case Rendering:
		return "rendering"
	default:
		return fmt.Sprintf("ExecutionContext(%d)", uint8(e))
	}
}

func (e ExecutionContext) valid() bool {
	return e == Interactive || e == Rendering
}

// UnmarshalText parses "interactive" or "rendering" (case-insensitive).
func (e *ExecutionContext) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "interactive", "browser":
		*e = Interactive
	case "rendering", "server":
		*e = Rendering
	default:
		return fmt.Errorf("%w: %q", ErrInvalidExecutionContext, string(text))
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (e ExecutionContext) MarshalText() ([]byte, error) {
	if !e.valid() {
		return nil, ErrInvalidExecutionContext
	}
	return []byte(e.String()), nil
}
