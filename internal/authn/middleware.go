package authn

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/live777/live777-go/pkg/response"
)

// Authenticator decides whether a bearer token grants a claim on a stream.
// Generalized from role-based (admin/speaker) grants to per-stream
// (publish|subscribe|admin) grants, and widened to accept either a static
// token or a JWT.
type Authenticator struct {
	jwt          *JWTService
	staticTokens map[string]struct{}
}

// NewAuthenticator builds an Authenticator from the configured static
// bearer allowlist and JWT secret. An empty allowlist and empty secret
// together mean auth is disabled (every request is admin-granted) — auth
// is optional for local/dev deployments.
func NewAuthenticator(jwtSecret string, staticTokens []string) *Authenticator {
	set := make(map[string]struct{}, len(staticTokens))
	for _, t := range staticTokens {
		set[t] = struct{}{}
	}
	return &Authenticator{jwt: NewJWTService(jwtSecret), staticTokens: set}
}

// Disabled reports whether no credentials are configured at all.
func (a *Authenticator) Disabled() bool {
	return len(a.staticTokens) == 0 && !a.jwt.Enabled()
}

// MintToken issues a stream-scoped JWT granting claim on streamID, for the
// admin surface to hand out instead of the static bearer allowlist. Fails
// if no JWT secret is configured.
func (a *Authenticator) MintToken(streamID string, claim Claim) (string, error) {
	if !a.jwt.Enabled() {
		return "", errors.New("jwt secret not configured")
	}
	switch claim {
	case ClaimPublish:
		return a.jwt.MintPublishToken(streamID)
	case ClaimSubscribe:
		return a.jwt.MintSubscribeToken(streamID)
	default:
		return a.jwt.MintAdminToken(streamID)
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// RequireClaim returns gin middleware enforcing that the request's bearer
// token grants `want` on the stream identified by the `streamParam` URL
// param. A static token grants every claim on every stream.
func (a *Authenticator) RequireClaim(streamParam string, want Claim) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Disabled() {
			c.Next()
			return
		}
		token := bearerToken(c)
		if token == "" {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}
		if _, ok := a.staticTokens[token]; ok {
			c.Next()
			return
		}
		streamID := c.Param(streamParam)
		claims, err := a.jwt.Validate(token)
		if err != nil || !claims.Grants(streamID, want) {
			response.Forbidden(c, "token does not grant "+string(want)+" on this stream")
			c.Abort()
			return
		}
		c.Set("stream_claims", claims)
		c.Next()
	}
}
