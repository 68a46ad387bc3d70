package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(a *Authenticator) *gin.Engine {
	r := gin.New()
	r.POST("/whip/:stream", a.RequireClaim("stream", ClaimPublish), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireClaimDisabledAllowsAllRequests(t *testing.T) {
	a := NewAuthenticator("", nil)
	require.True(t, a.Disabled())
	r := newTestRouter(a)

	req := httptest.NewRequest(http.MethodPost, "/whip/stream-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireClaimRejectsMissingToken(t *testing.T) {
	a := NewAuthenticator("secret", nil)
	r := newTestRouter(a)

	req := httptest.NewRequest(http.MethodPost, "/whip/stream-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireClaimAcceptsStaticToken(t *testing.T) {
	a := NewAuthenticator("", []string{"static-token"})
	r := newTestRouter(a)

	req := httptest.NewRequest(http.MethodPost, "/whip/stream-1", nil)
	req.Header.Set("Authorization", "Bearer static-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireClaimAcceptsGrantingJWT(t *testing.T) {
	a := NewAuthenticator("jwt-secret", nil)
	r := newTestRouter(a)

	token, err := a.jwt.Generate("stream-1", []Claim{ClaimPublish}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/whip/stream-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireClaimRejectsJWTForWrongStream(t *testing.T) {
	a := NewAuthenticator("jwt-secret", nil)
	r := newTestRouter(a)

	token, err := a.jwt.Generate("stream-2", []Claim{ClaimPublish}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/whip/stream-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireClaimRejectsJWTMissingGrant(t *testing.T) {
	a := NewAuthenticator("jwt-secret", nil)
	r := newTestRouter(a)

	token, err := a.jwt.Generate("stream-1", []Claim{ClaimSubscribe}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/whip/stream-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
