package signalling

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/live777/live777-go/pkg/response"
)

// handlePatchSession implements `PATCH /session/{stream}/{session}`
//: applies a trickled ICE candidate fragment. Unknown
// session -> 404.
func (s *Server) handlePatchSession(c *gin.Context) {
	streamID := c.Param("stream")
	sessionID := c.Param("session")

	sess, ok := s.lookupSession(streamID, sessionID)
	if !ok {
		response.NotFound(c, "unknown session")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read candidate fragment")
		return
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(body, &candidate); err != nil {
		// application/trickle-ice-sdpfrag may also be a bare candidate line;
		// fall back to treating the whole body as the candidate string.
		candidate = webrtc.ICECandidateInit{Candidate: string(body)}
	}
	if err := sess.AddICECandidate(candidate); err != nil {
		response.BadRequest(c, "invalid ICE candidate")
		return
	}
	response.NoContent(c)
}

// handleDeleteSession implements `DELETE /session/{stream}/{session}`
//: idempotent teardown.
func (s *Server) handleDeleteSession(c *gin.Context) {
	streamID := c.Param("stream")
	sessionID := c.Param("session")

	sess, ok := s.lookupSession(streamID, sessionID)
	if !ok {
		response.NoContent(c)
		return
	}
	s.untrackSession(sessionID)

	if f, ok := s.registry.Get(streamID); ok {
		f.DetachSession(sess)
	}
	_ = sess.Close()
	response.NoContent(c)
}
