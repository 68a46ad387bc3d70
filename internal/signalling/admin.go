package signalling

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/live777/live777-go/internal/authn"
	"github.com/live777/live777-go/internal/webrtcsfu"
	"github.com/live777/live777-go/pkg/response"
)

// handleCreateStream implements `POST /api/streams/{stream}`: explicit
// create, 409 if it already exists.
func (s *Server) handleCreateStream(c *gin.Context) {
	streamID := c.Param("stream")
	_, alreadyExists := s.registry.Create(streamID)
	if alreadyExists {
		response.Conflict(c, "stream already exists")
		return
	}
	s.audit.RecordStreamCreated(c.Request.Context(), streamID)
	s.metrics.Inc("stream", 1)
	response.NoContent(c)
}

// handleListStreams implements `GET /api/streams/`: JSON list of Stream views.
func (s *Server) handleListStreams(c *gin.Context) {
	response.OK(c, s.registry.List())
}

// handleGetStream implements `GET /api/streams/{stream}`: single-stream view,
// 404 when the stream does not exist (the original binbat/live777 admin API
// exposes both the collection and a per-id view; spec.md's distillation kept
// only the collection GET, reinstated here per SPEC_FULL.md §4.1).
func (s *Server) handleGetStream(c *gin.Context) {
	streamID := c.Param("stream")
	f, ok := s.registry.Get(streamID)
	if !ok {
		response.NotFound(c, "stream does not exist")
		return
	}
	response.OK(c, f.View())
}

// handleDeleteStream implements `DELETE /api/streams/{stream}`: force-destroy.
func (s *Server) handleDeleteStream(c *gin.Context) {
	streamID := c.Param("stream")
	if s.registry.Delete(streamID) {
		s.audit.RecordStreamClosed(c.Request.Context(), streamID, "admin delete")
		s.metrics.Inc("live777_streams_closed_total", 1)
	}
	response.NoContent(c)
}

// cascadeRequest is the body of `POST /api/cascade/{stream}`.
type cascadeRequest struct {
	Token     string `json:"token,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
	TargetURL string `json:"targetUrl,omitempty"`
}

// handleCascade implements `POST /api/cascade/{stream}`: exactly one of sourceUrl (pull) / targetUrl (push) must be set.
// Loop prevention: a request already carrying this node's marker is
// refused with 508.
func (s *Server) handleCascade(c *gin.Context) {
	if s.cascade.SeenOwnMarker(c.GetHeader(webrtcsfu.NodeHeader)) {
		response.LoopDetected(c, "cascade loop detected")
		return
	}

	streamID := c.Param("stream")
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read cascade request")
		return
	}
	var req cascadeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.BadRequest(c, "invalid cascade request body")
		return
	}
	if (req.SourceURL == "" && req.TargetURL == "") || (req.SourceURL != "" && req.TargetURL != "") {
		response.BadRequest(c, "exactly one of sourceUrl or targetUrl is required")
		return
	}

	f, _ := s.registry.GetOrCreate(streamID)

	if req.SourceURL != "" {
		if err := s.startCascadePull(c, f, streamID, req.SourceURL, req.Token); err != nil {
			response.ServiceUnavailable(c, err.Error())
			return
		}
	} else {
		if err := s.startCascadePush(c, f, streamID, req.TargetURL, req.Token); err != nil {
			response.ServiceUnavailable(c, err.Error())
			return
		}
	}
	s.metrics.Inc("cascade", 1)
	response.NoContent(c)
}

// handleStartRecording starts the optional ffmpeg-backed recording tap
// for a stream that already has a
// live publisher. 503 when no recorder is configured.
func (s *Server) handleStartRecording(c *gin.Context) {
	if s.recorder == nil {
		response.ServiceUnavailable(c, "recording is not configured on this node")
		return
	}
	streamID := c.Param("stream")
	recordingID := uuid.New()
	outputPath, err := s.recorder.StartRecording(c.Request.Context(), streamID, recordingID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Created(c, gin.H{"recordingId": recordingID.String(), "outputPath": outputPath})
}

// handleStopRecording stops a stream's active recording, if any.
func (s *Server) handleStopRecording(c *gin.Context) {
	if s.recorder == nil {
		response.ServiceUnavailable(c, "recording is not configured on this node")
		return
	}
	streamID := c.Param("stream")
	outputPath, err := s.recorder.StopRecording(streamID)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}
	response.OK(c, gin.H{"outputPath": outputPath})
}

// tokenRequest is the body of `POST /api/streams/{stream}/token`: mint a
// stream-scoped JWT instead of distributing the static bearer allowlist.
type tokenRequest struct {
	Claim string `json:"claim"`
}

// handleMintToken issues a stream-scoped JWT for claim in
// {publish, subscribe, admin}, 503 when no JWT secret is configured.
func (s *Server) handleMintToken(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read token request")
		return
	}
	var req tokenRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			response.BadRequest(c, "invalid token request body")
			return
		}
	}
	var claim authn.Claim
	switch req.Claim {
	case "", string(authn.ClaimAdmin):
		claim = authn.ClaimAdmin
	case string(authn.ClaimPublish):
		claim = authn.ClaimPublish
	case string(authn.ClaimSubscribe):
		claim = authn.ClaimSubscribe
	default:
		response.BadRequest(c, "claim must be one of publish, subscribe, admin")
		return
	}

	streamID := c.Param("stream")
	token, err := s.auth.MintToken(streamID, claim)
	if err != nil {
		response.ServiceUnavailable(c, "JWT minting is not configured on this node")
		return
	}
	response.OK(c, gin.H{"token": token, "claim": string(claim)})
}

// handlePresenceLookup reports the last node this cluster observed holding
// streamID's publisher. 404 when no presence has been observed for the stream, 503 when
// presence tracking isn't configured.
func (s *Server) handlePresenceLookup(c *gin.Context) {
	if s.presence == nil {
		response.ServiceUnavailable(c, "presence tracking is not configured on this node")
		return
	}
	streamID := c.Param("stream")
	nodeID, ok := s.presence.Lookup(streamID)
	if !ok {
		response.NotFound(c, "no presence observed for this stream")
		return
	}
	response.OK(c, gin.H{"nodeId": nodeID})
}
