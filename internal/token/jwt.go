// Package token signs and verifies the HS256 access tokens issued at
// /oauth/token. Verification failures are reported as one of three stable
// categories so the authorizers can surface them directly.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long issued tokens live.
const DefaultTTL = 24 * time.Hour

// Category classifies a verification failure.
type Category string

const (
	CategoryBadJWT           Category = "BAD_JWT"
	CategoryExpired          Category = "EXPIRED"
	CategoryInvalidSignature Category = "INVALID_SIGNATURE"
)

// VerifyError wraps a jwt library error with its category.
type VerifyError struct {
	Category Category
	Err      error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("token: %s: %v", e.Category, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Payload is the decoded claim set of an access token. Version is the
// client's revocation counter captured at mint time. SecretExpiresAt is set
// only when the token was minted from the outgoing secret of a rotation
// window.
type Payload struct {
	Sub             string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	Version         int
	SecretExpiresAt *time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Version         int      `json:"version"`
	SecretExpiresAt *float64 `json:"secret_expires_at,omitempty"`
}

// Codec signs and verifies with a single process-wide secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl}
}

// TTL returns the issuance lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue builds a payload for sub starting now and signs it.
func (c *Codec) Issue(sub string, version int, secretExpiresAt *time.Time) (string, Payload, error) {
	now := time.Now()
	payload := Payload{
		Sub:             sub,
		IssuedAt:        now,
		ExpiresAt:       now.Add(c.ttl),
		Version:         version,
		SecretExpiresAt: secretExpiresAt,
	}
	signed, err := c.Sign(payload)
	return signed, payload, err
}

// Sign serializes the payload as HS256. Timestamps go on the wire as Unix
// seconds.
func (c *Codec) Sign(payload Payload) (string, error) {
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Sub,
			IssuedAt:  jwt.NewNumericDate(payload.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
		Version: payload.Version,
	}
	if payload.SecretExpiresAt != nil {
		sec := float64(payload.SecretExpiresAt.Unix())
		cl.SecretExpiresAt = &sec
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify decodes and validates a token. On failure the returned error is a
// *VerifyError: expiry maps to EXPIRED, a signature mismatch to
// INVALID_SIGNATURE, and everything else (malformed structure, wrong
// algorithm, missing subject) to BAD_JWT.
func (c *Codec) Verify(tokenString string) (*Payload, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(tokenString, &cl, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, &VerifyError{Category: categorize(err), Err: err}
	}

	if cl.Subject == "" || cl.IssuedAt == nil || cl.ExpiresAt == nil {
		return nil, &VerifyError{Category: CategoryBadJWT, Err: errors.New("missing required claims")}
	}

	payload := &Payload{
		Sub:       cl.Subject,
		IssuedAt:  cl.IssuedAt.Time,
		ExpiresAt: cl.ExpiresAt.Time,
		Version:   cl.Version,
	}
	if cl.SecretExpiresAt != nil {
		t := time.Unix(int64(*cl.SecretExpiresAt), 0)
		payload.SecretExpiresAt = &t
	}
	return payload, nil
}

func categorize(err error) Category {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return CategoryExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return CategoryInvalidSignature
	default:
		return CategoryBadJWT
	}
}
