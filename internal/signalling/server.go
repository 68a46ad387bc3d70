package signalling

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/live777/live777-go/config"
	"github.com/live777/live777-go/internal/authn"
	"github.com/live777/live777-go/internal/recorder"
	"github.com/live777/live777-go/internal/webrtcsfu"
	"github.com/live777/live777-go/pkg/metrics"
	"github.com/live777/live777-go/pkg/turnauth"
)

// Server holds everything the WHIP/WHEP/admin HTTP surface needs: the
// stream registry, the shared peer-connection factory, the session
// directory (a Session's one strong reference outside its owning
// Forwarder "weak handle" note — here the Forwarder
// holds the weak/callback side and the Server holds the addressable side
// for HTTP verbs like PATCH/DELETE), auth, and cascade wiring.
type Server struct {
	cfg      *config.Config
	registry *webrtcsfu.Registry
	peers    *PeerFactory
	auth     *authn.Authenticator
	turn     *turnauth.Minter
	cascade  *webrtcsfu.CascadeClient
	metrics  *metrics.Registry
	audit    *webrtcsfu.AuditSink
	log      *zap.Logger

	// recorder and presence are both optional external-collaborator hooks
	//: nil disables their admin endpoints/lookup entirely.
	recorder *recorder.Service
	presence *webrtcsfu.PresenceTracker

	sessionsMu sync.RWMutex
	sessions   map[string]*webrtcsfu.Session

	// cascadeChainsMu guards cascadeChains: the marker chain most recently
	// observed on an inbound cascade-tagged WHIP/WHEP request, keyed by
	// stream ID. An outbound cascade dial for the same stream extends this
	// chain instead of starting a fresh one, so a cycle that revisits a
	// node anywhere in its history is still detectable.
	cascadeChainsMu sync.Mutex
	cascadeChains   map[string][]string
}

// NewServer wires every dependency the signalling surface needs. audit,
// rec and presence may be nil/no-op (see webrtcsfu.NewAuditSink with nil
// pool/queue/presence).
func NewServer(cfg *config.Config, registry *webrtcsfu.Registry, peers *PeerFactory, auth *authn.Authenticator, turn *turnauth.Minter, cascade *webrtcsfu.CascadeClient, m *metrics.Registry, audit *webrtcsfu.AuditSink, rec *recorder.Service, presence *webrtcsfu.PresenceTracker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:           cfg,
		registry:      registry,
		peers:         peers,
		auth:          auth,
		turn:          turn,
		cascade:       cascade,
		metrics:       m,
		audit:         audit,
		recorder:      rec,
		presence:      presence,
		log:           log,
		sessions:      make(map[string]*webrtcsfu.Session),
		cascadeChains: make(map[string][]string),
	}
}

// recordCascadeMarkerChain remembers the marker chain an inbound cascade
// request carried for streamID, so a later outbound cascade dial for the
// same stream can extend it rather than start a fresh one.
func (s *Server) recordCascadeMarkerChain(streamID string, chain []string) {
	s.cascadeChainsMu.Lock()
	s.cascadeChains[streamID] = chain
	s.cascadeChainsMu.Unlock()
}

// cascadeMarkerChainFor returns the marker chain recorded for streamID, if
// any prior inbound cascade request carried one.
func (s *Server) cascadeMarkerChainFor(streamID string) []string {
	s.cascadeChainsMu.Lock()
	defer s.cascadeChainsMu.Unlock()
	return append([]string(nil), s.cascadeChains[streamID]...)
}

func (s *Server) trackSession(sess *webrtcsfu.Session) {
	s.sessionsMu.Lock()
	s.sessions[sess.ID] = sess
	s.sessionsMu.Unlock()
}

func (s *Server) lookupSession(streamID, sessionID string) (*webrtcsfu.Session, bool) {
	s.sessionsMu.RLock()
	sess, ok := s.sessions[sessionID]
	s.sessionsMu.RUnlock()
	if !ok || sess.StreamID != streamID {
		return nil, false
	}
	return sess, true
}

func (s *Server) untrackSession(sessionID string) {
	s.sessionsMu.Lock()
	delete(s.sessions, sessionID)
	s.sessionsMu.Unlock()
}

// iceServersFor mints fresh per-session TURN credentials when configured,
// otherwise falls back to the static ICE server list.
func (s *Server) iceServersFor(c *gin.Context) []webrtc.ICEServer {
	if s.turn == nil || !s.turn.Enabled() {
		return nil
	}
	cred := s.turn.Mint(c.ClientIP())
	servers := append([]webrtc.ICEServer(nil), s.peers.ICEServers()...)
	servers = append(servers, webrtc.ICEServer{
		URLs:       []string{fmt.Sprintf("turn:%s", s.turn.Realm())},
		Username:   cred.Username,
		Credential: cred.Password,
	})
	return servers
}

// writeICELinkHeaders adds one Link header per configured ICE server
//.
func (s *Server) writeICELinkHeaders(c *gin.Context) {
	for _, server := range s.peers.ICEServers() {
		for _, url := range server.URLs {
			c.Writer.Header().Add("Link", fmt.Sprintf(`<%s>; rel="ice-server"`, url))
		}
	}
}
