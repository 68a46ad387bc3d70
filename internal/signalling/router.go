package signalling

import (
	"github.com/gin-gonic/gin"

	"github.com/live777/live777-go/internal/authn"
	"github.com/live777/live777-go/internal/middleware"
)

// NewRouter assembles the Live777 HTTP surface: WHIP/WHEP
// signalling, session PATCH/DELETE, the admin stream/cascade API, and
// /metrics. Grounded on cmd/server-style route wiring, generalized
// from the webinar REST surface to the WHIP/WHEP/admin one.
func (s *Server) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.log))
	r.Use(middleware.CORS(s.cfg.Server.CORSAllowedOrigins))

	r.POST("/whip/:stream", s.auth.RequireClaim("stream", authn.ClaimPublish), s.handleWHIP)
	r.POST("/whep/:stream", s.auth.RequireClaim("stream", authn.ClaimSubscribe), s.handleWHEP)
	r.PATCH("/session/:stream/:session", s.handlePatchSession)
	r.DELETE("/session/:stream/:session", s.handleDeleteSession)

	api := r.Group("/api")
	{
		api.POST("/streams/:stream", s.auth.RequireClaim("stream", authn.ClaimAdmin), s.handleCreateStream)
		api.GET("/streams/", s.auth.RequireClaim("stream", authn.ClaimAdmin), s.handleListStreams)
		api.GET("/streams/:stream", s.auth.RequireClaim("stream", authn.ClaimAdmin), s.handleGetStream)
		api.DELETE("/streams/:stream", s.auth.RequireClaim("stream", authn.ClaimAdmin), s.handleDeleteStream)
		api.POST("/cascade/:stream", s.auth.RequireClaim("stream", authn.ClaimAdmin), s.handleCascade)
		api.POST("/streams/:stream/recording", s.auth.RequireClaim("stream", authn.ClaimAdmin), s.handleStartRecording)
		api.DELETE("/streams/:stream/recording", s.auth.RequireClaim("stream", authn.ClaimAdmin), s.handleStopRecording)
		api.POST("/streams/:stream/token", s.auth.RequireClaim("stream", authn.ClaimAdmin), s.handleMintToken)
		api.GET("/presence/:stream", s.auth.RequireClaim("stream", authn.ClaimAdmin), s.handlePresenceLookup)
	}

	r.GET("/metrics", s.handleMetrics)

	return r
}

// handleMetrics serves the Prometheus text-exposition format described in
// pkg/metrics.
func (s *Server) handleMetrics(c *gin.Context) {
	c.String(200, "%s", s.metrics.Render())
}
