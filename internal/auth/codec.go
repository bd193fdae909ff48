package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
)

// Encoding selects how a protocol version carries the credential in the
// Authorization header. Each version uses exactly one encoding; a header is
// never tried against a second one.
type Encoding string

const (
	// EncodingPlain sends the credential as is (2.1.1 convention).
	EncodingPlain Encoding = "plain"

	// EncodingBase64 sends base64(credential) (2.2.x convention).
	EncodingBase64 Encoding = "base64"

	// EncodingAuto accepts either form. It serves the version-independent
	// versions listing only, where the partner has not picked a version yet.
	// A plain credential decodes to JSON; a base64 one decodes to base64 text,
	// so the two never overlap.
	EncodingAuto Encoding = "auto"
)

var (
	// ErrMissingToken is returned when no Authorization header was sent.
	ErrMissingToken = errors.New("missing authorization token")

	// ErrMalformedToken is returned when the header cannot be decoded into claims.
	ErrMalformedToken = errors.New("invalid authorization token")
)

// ParseEncoding parses a configured encoding name.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case EncodingPlain:
		return EncodingPlain, nil
	case EncodingBase64:
		return EncodingBase64, nil
	default:
		return "", fmt.Errorf("unknown token encoding %q", s)
	}
}

// DefaultEncoding returns the encoding a protocol version uses when the
// configuration does not name one.
func DefaultEncoding(version string) Encoding {
	if strings.HasPrefix(version, "2.1") || strings.HasPrefix(version, "2.0") {
		return EncodingPlain
	}
	return EncodingBase64
}

// Codec decodes Authorization headers for one protocol version.
type Codec struct {
	Encoding Encoding
}

// NewCodec creates a codec for enc.
func NewCodec(enc Encoding) *Codec {
	return &Codec{Encoding: enc}
}

// Decode extracts the credential and its claims from an Authorization header
// value. Both the "Token" and "Bearer" schemes are accepted.
func (c *Codec) Decode(header string) (string, domain.Claims, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", domain.Claims{}, ErrMissingToken
	}

	scheme, value, ok := strings.Cut(header, " ")
	if !ok {
		return "", domain.Claims{}, ErrMalformedToken
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
	default:
		return "", domain.Claims{}, ErrMalformedToken
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", domain.Claims{}, ErrMalformedToken
	}

	credential := value
	switch c.Encoding {
	case EncodingBase64:
		raw, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return "", domain.Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		credential = string(raw)
	case EncodingAuto:
		raw, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return "", domain.Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		if !strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
			credential = string(raw)
		}
	}

	claims, err := ParseClaims(credential)
	if err != nil {
		return "", domain.Claims{}, err
	}
	return credential, claims, nil
}

// HeaderValue returns the Authorization header value that carries credential.
func (c *Codec) HeaderValue(credential string) string {
	if c.Encoding != EncodingPlain {
		return "Token " + base64.StdEncoding.EncodeToString([]byte(credential))
	}
	return "Token " + credential
}

// ParseClaims decodes a credential, base64 encoded JSON, into its claims.
func ParseClaims(credential string) (domain.Claims, error) {
	raw, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var claims domain.Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if strings.TrimSpace(claims.Tenant) == "" {
		return domain.Claims{}, fmt.Errorf("%w: no tenant claim", ErrMalformedToken)
	}
	return claims, nil
}

// EncodeClaims builds a credential from claims.
func EncodeClaims(claims domain.Claims) (string, error) {
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
