// Package authn implements the uniform WHIP/WHEP/admin authentication rule
// from: either a static bearer token, or a JWT whose claims
// grant (subscribe | publish | admin) on a specific stream. Grounded on the
// teacher's auth.JWTService (HS256 via golang-jwt/jwt/v5).
package authn

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any malformed, expired or wrong-signature token.
var ErrInvalidToken = errors.New("invalid token")

// Claim is one of the grants a JWT can carry for a stream.
type Claim string

const (
	ClaimPublish   Claim = "publish"
	ClaimSubscribe Claim = "subscribe"
	ClaimAdmin     Claim = "admin"
)

// StreamClaims holds the JWT claims granting access to one stream.
type StreamClaims struct {
	StreamID string  `json:"stream_id"`
	Claims   []Claim `json:"claims"`
	jwt.RegisteredClaims
}

// Grants reports whether the claims include the given grant for the stream,
// or the wildcard admin grant (which implies publish and subscribe).
func (c *StreamClaims) Grants(streamID string, want Claim) bool {
	if c.StreamID != "" && c.StreamID != streamID {
		return false
	}
	for _, have := range c.Claims {
		if have == ClaimAdmin || have == want {
			return true
		}
	}
	return false
}

// JWTService signs and validates stream-scoped claim tokens.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a JWT service for the given HMAC secret. An empty
// secret disables JWT auth entirely (Validate always fails).
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// Enabled reports whether JWT auth is configured.
func (s *JWTService) Enabled() bool { return len(s.secret) > 0 }

// Generate creates a new JWT granting claims on a stream, expiring after ttl.
func (s *JWTService) Generate(streamID string, claims []Claim, ttl time.Duration) (string, error) {
	c := StreamClaims{
		StreamID: streamID,
		Claims:   claims,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT, returning its stream claims.
func (s *JWTService) Validate(tokenString string) (*StreamClaims, error) {
	if !s.Enabled() {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &StreamClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*StreamClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
