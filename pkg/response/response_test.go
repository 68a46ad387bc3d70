package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func TestOKWritesSuccessEnvelope(t *testing.T) {
	c, w := newTestContext()
	OK(c, gin.H{"id": "s1"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Contains(t, w.Body.String(), `"id":"s1"`)
}

func TestNotFoundWritesErrorEnvelope(t *testing.T) {
	c, w := newTestContext()
	NotFound(c, "unknown session")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Contains(t, w.Body.String(), "unknown session")
}

func TestLoopDetectedUses508(t *testing.T) {
	c, w := newTestContext()
	LoopDetected(c, "cascade loop detected")
	assert.Equal(t, http.StatusLoopDetected, w.Code)
}

func TestSDPWritesRawBody(t *testing.T) {
	c, w := newTestContext()
	SDP(c, http.StatusCreated, "v=0\r\n")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/sdp", w.Header().Get("Content-Type"))
	assert.Equal(t, "v=0\r\n", w.Body.String())
}

func TestNoContentSetsStatusOnly(t *testing.T) {
	c, w := newTestContext()
	NoContent(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
