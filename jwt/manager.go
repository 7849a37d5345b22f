package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects how access tokens are signed and verified.
type SigningMethod string

const (
	// MethodNone decodes without signature verification.
	MethodNone SigningMethod = ""
	// MethodEd25519 verifies EdDSA signatures.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 verifies HMAC-SHA256 signatures.
	MethodHS256 SigningMethod = "hs256"
)

// ErrMalformedToken is returned when a token cannot be decoded at all.
var ErrMalformedToken = errors.New("malformed token")

// Claims defines the claims a session guard evaluates.
type Claims struct {
	Permissions []string `json:"permissions,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Config configures a Decoder or an Issuer.
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey signs tokens; for hs256 it is also the verification secret.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	TTL        time.Duration
	KeyID      string
}

// Decoder extracts [Claims] from access tokens.
type Decoder struct {
	config Config
}

// NewDecoder may return an error when the key material does not match the signing method.
func NewDecoder(cfg Config) (*Decoder, error) {
	if err := validate(cfg, false); err != nil {
		return nil, err
	}
	return &Decoder{config: cfg}, nil
}

// Verifying reports whether Decode checks signatures.
func (d *Decoder) Verifying() bool {
	return d != nil && d.config.SigningMethod != MethodNone
}

// Decode may return an error wrapping [ErrMalformedToken] when the token cannot be parsed, or a
// golang-jwt validation error when verification is enabled and fails.
func (d *Decoder) Decode(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrMalformedToken
	}

	if !d.Verifying() {
		claims := &Claims{}
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return claims, nil
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{d.method().Alg()}),
	}
	if d.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(d.config.Leeway))
	}
	if d.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(d.config.Issuer))
	}
	if d.config.Audience != "" {
		options = append(options, jwt.WithAudience(d.config.Audience))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != d.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if d.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != d.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return verifyKey(d.config)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (d *Decoder) method() jwt.SigningMethod {
	return signingMethod(d.config.SigningMethod)
}

// Issuer signs access tokens carrying permission and role claims.
type Issuer struct {
	config Config
	// Clock can be used to override measurement of time in tests.
	Clock func() time.Time
}

// NewIssuer may return an error when the TTL is not positive or no signing key is configured.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.SigningMethod == MethodNone {
		return nil, errors.New("issuer requires a signing method")
	}
	if err := validate(cfg, true); err != nil {
		return nil, err
	}
	return &Issuer{config: cfg, Clock: time.Now}, nil
}

// Issue may return an error when signing fails.
func (i *Issuer) Issue(subject string, permissions, roles []string) (string, error) {
	now := i.Clock()
	claims := Claims{
		Permissions: append([]string(nil), permissions...),
		Roles:       append([]string(nil), roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.config.Issuer,
		},
	}
	if i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}

	token := jwt.NewWithClaims(signingMethod(i.config.SigningMethod), claims)
	if i.config.KeyID != "" {
		token.Header["kid"] = i.config.KeyID
	}

	key, err := signKey(i.config)
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

func validate(cfg Config, signing bool) error {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodNone:
		return nil
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if signing || len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return err
			}
		}
		if !signing {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return err
			}
		}
	default:
		return errors.New("unsupported signing method")
	}
	return nil
}

func signingMethod(m SigningMethod) jwt.SigningMethod {
	switch m {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func signKey(cfg Config) (interface{}, error) {
	switch cfg.SigningMethod {
	case MethodHS256:
		return cfg.PrivateKey, nil
	default:
		return parseEdPrivateKey(cfg.PrivateKey)
	}
}

func verifyKey(cfg Config) (interface{}, error) {
	switch cfg.SigningMethod {
	case MethodHS256:
		return cfg.PrivateKey, nil
	default:
		return parseEdPublicKey(cfg.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
