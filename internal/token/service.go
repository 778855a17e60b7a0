// Package token mints and verifies the signed session tokens that carry
// identity across service boundaries. The service is stateless: it holds
// only the symmetric signing key and the two TTLs.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// ErrInvalidToken covers bad signature, malformed input and expiry. Callers
// never learn which; the distinction must not leak to the outside.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified claim set of a session token. Email and Name are
// empty on refresh tokens, which carry the subject and timestamps only.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service issues and verifies HS256-signed tokens. Read-only after
// construction, safe for concurrent use.
type Service struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clockwork.Clock
}

func NewService(secret string, accessTTL, refreshTTL time.Duration) *Service {
	return NewServiceWithClock(secret, accessTTL, refreshTTL, clockwork.NewRealClock())
}

// NewServiceWithClock injects the clock so expiry boundaries are testable.
func NewServiceWithClock(secret string, accessTTL, refreshTTL time.Duration, clock clockwork.Clock) *Service {
	return &Service{
		key:        []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clock,
	}
}

// MintAccess issues a short-lived access token. Email and name claims are
// embedded only when non-empty.
func (s *Service) MintAccess(subject, email, name string) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	if name != "" {
		claims["name"] = name
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// MintRefresh issues a long-lived refresh token carrying the subject and
// timestamps only, so a leaked refresh token exposes no identity attributes.
func (s *Service) MintRefresh(subject string) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(s.refreshTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks signature and expiry and returns the claim set. Timestamps
// are second-granularity; a token is expired once now >= expires-at (jwt/v5
// requires now to be strictly before exp).
func (s *Service) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidToken
	}
	iat, err := mc.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, ErrInvalidToken
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	c := &Claims{Subject: sub, IssuedAt: iat.Time, ExpiresAt: exp.Time}
	if v, ok := mc["email"].(string); ok {
		c.Email = v
	}
	if v, ok := mc["name"].(string); ok {
		c.Name = v
	}
	return c, nil
}
