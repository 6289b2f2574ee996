// Package token issues and verifies signed, expiring bearer tokens (HS256 JWT)
// carrying identity and role claims. Verification is stateless.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/and161185/docshare/internal/crypto"
	"github.com/and161185/docshare/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// KeySize is the length of generated signing keys.
const KeySize = 32

// Verification failures.
var (
	ErrMalformed    = errors.New("token malformed")
	ErrBadSignature = errors.New("token signature invalid")
	ErrExpired      = errors.New("token expired")
)

// claims is the wire payload.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a process-wide key. The key is never
// mutated after construction, so a Service is safe for concurrent use.
type Service struct {
	key []byte
	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service signing with key.
func NewService(key []byte, opts ...Option) (*Service, error) {
	if len(key) == 0 {
		return nil, errors.New("empty signing key")
	}
	s := &Service{key: append([]byte(nil), key...), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// GenerateKey returns a random signing key.
func GenerateKey() ([]byte, error) {
	return crypto.RandBytes(KeySize)
}

// Issue creates a signed token for subject with the given role, valid for ttl.
func (s *Service) Issue(subject string, role model.Role, ttl time.Duration) (string, time.Time, error) {
	if subject == "" || !role.Valid() {
		return "", time.Time{}, fmt.Errorf("issue: bad subject/role %q/%q", subject, role)
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("issue: non-positive ttl %s", ttl)
	}
	now := s.now()
	exp := now.Add(ttl)
	c := claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, c.ExpiresAt.Time, nil
}

// Verify checks signature and expiry and returns the embedded claims.
// A token is expired once the current time reaches its exp claim.
func (s *Service) Verify(tokenStr string) (model.Claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenStr, &c, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return model.Claims{}, classify(err)
	}

	role, rerr := model.ParseRole(c.Role)
	if rerr != nil || c.Subject == "" {
		return model.Claims{}, ErrMalformed
	}
	out := model.Claims{Subject: c.Subject, Role: role, ExpiresAt: c.ExpiresAt.Time}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
