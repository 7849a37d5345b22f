package goAuthClient

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/session"
)

// Config is the complete engine configuration.
type Config struct {
	Transport TransportConfig  `mapstructure:"transport"`
	Refresh   RefreshConfig    `mapstructure:"refresh"`
	Cookie    CookieConfig     `mapstructure:"cookie"`
	Guard     GuardConfig      `mapstructure:"guard"`
	Execution ExecutionContext `mapstructure:"execution"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Audit     AuditConfig      `mapstructure:"audit"`
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig controls how requests reach the API.
type TransportConfig struct {
	// BaseURL is prefixed to every request path.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds each exchange of the default http.Client. Zero disables it.
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig describes the renewal endpoint and the error code that triggers it.
type RefreshConfig struct {
	// Path of the renewal endpoint, called with POST {"refreshToken": ...}.
	Path string `mapstructure:"path"`
	// ExpiredCode is the 401 body code that marks an access token as renewable.
	ExpiredCode string `mapstructure:"expired_code"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names the session artifacts and the cookie attributes they are written with.
type CookieConfig struct {
	AccessTokenName  string        `mapstructure:"access_token_name"`
	RefreshTokenName string        `mapstructure:"refresh_token_name"`
	MaxAge           time.Duration `mapstructure:"max_age"`
	Path             string        `mapstructure:"path"`
	Domain           string        `mapstructure:"domain"`
	Secure           bool          `mapstructure:"secure"`
	HTTPOnly         bool          `mapstructure:"http_only"`
	// SameSite is one of "", "lax", "strict", "none".
	SameSite string `mapstructure:"same_site"`
}

func (c CookieConfig) keys() session.Keys {
	return session.Keys{
		AccessToken:  c.AccessTokenName,
		RefreshToken: c.RefreshTokenName,
	}
}

func (c CookieConfig) writeOptions() session.WriteOptions {
	return session.WriteOptions{
		MaxAge:   c.MaxAge,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: parseSameSite(c.SameSite),
	}
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

/*
====================================
GUARD CONFIG
====================================
*/

// GuardConfig holds the session guard redirect destinations.
type GuardConfig struct {
	NoSessionRedirect    string `mapstructure:"no_session_redirect"`
	ForbiddenRedirect    string `mapstructure:"forbidden_redirect"`
	SessionResetRedirect string `mapstructure:"session_reset_redirect"`
	Permanent            bool   `mapstructure:"permanent"`
}

/*
====================================
AUDIT + METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// MetricsConfig toggles counters and the renewal latency histogram.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			BaseURL: "http://localhost:3333",
			Timeout: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			Path:        "/refresh",
			ExpiredCode: "token.expired",
		},
		Cookie: CookieConfig{
			AccessTokenName:  session.DefaultAccessTokenKey,
			RefreshTokenName: session.DefaultRefreshTokenKey,
			MaxAge:           session.DefaultMaxAge,
			Path:             session.DefaultPath,
		},
		Guard: GuardConfig{
			NoSessionRedirect:    "/dashboard",
			ForbiddenRedirect:    "/dashboard",
			SessionResetRedirect: "/",
		},
		Execution: Interactive,
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate may return an error when a required field is empty or out of range.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Transport
	if c.Transport.BaseURL != "" {
		u, err := url.Parse(c.Transport.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("Transport BaseURL must be an absolute URL")
		}
	}
	if c.Transport.Timeout < 0 {
		return errors.New("Transport Timeout must be >= 0")
	}

	// Refresh
	if !strings.HasPrefix(c.Refresh.Path, "/") {
		return errors.New("Refresh Path must start with /")
	}
	if c.Refresh.ExpiredCode == "" {
		return errors.New("Refresh ExpiredCode must be set")
	}

	// Cookie
	if c.Cookie.AccessTokenName == "" || c.Cookie.RefreshTokenName == "" {
		return errors.New("Cookie token names must be set")
	}
	if c.Cookie.AccessTokenName == c.Cookie.RefreshTokenName {
		return errors.New("Cookie token names must differ")
	}
	if c.Cookie.MaxAge <= 0 {
		return errors.New("Cookie MaxAge must be > 0")
	}
	switch strings.ToLower(c.Cookie.SameSite) {
	case "", "lax", "strict", "none":
	default:
		return errors.New("Cookie SameSite must be lax, strict, or none")
	}
	if strings.EqualFold(c.Cookie.SameSite, "none") && !c.Cookie.Secure {
		return errors.New("Cookie SameSite none requires Secure")
	}

	// Guard
	if c.Guard.NoSessionRedirect == "" || c.Guard.ForbiddenRedirect == "" || c.Guard.SessionResetRedirect == "" {
		return errors.New("Guard redirect destinations must be set")
	}

	if !c.Execution.valid() {
		return ErrInvalidExecutionContext
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
