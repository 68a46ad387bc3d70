package webrtcsfu

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// sendQueueSize bounds each subscriber's per-track outbound packet queue.
// Per, the Forwarder drops the newest packet when this fills
// rather than block the publisher ingress task.
const sendQueueSize = 256

// dataChannelQueueSize bounds each session's outgoing DataChannel message
// queue.
const dataChannelQueueSize = 64

// Session hosts one WebRTC peer connection in role publish or subscribe,
// attached to exactly one stream for its lifetime. Grounded on
// a realtime.Client-style peer-connection wrapper, generalized from a
// WebSocket-signalled single endpoint to the WHIP/WHEP negotiation rules of
//
type Session struct {
	ID        string
	StreamID  string
	Role      Role
	CreatedAt time.Time
	Cascade   *CascadeDescriptor

	pc *webrtc.PeerConnection

	mu    sync.RWMutex
	state SessionState
	dc    *webrtc.DataChannel

	// sendQueues holds one bounded outbound packet channel per local track
	// SSRC this session sends (subscriber role only).
	sendQueues map[uint32]chan []byte
	dropCounts map[uint32]*uint64

	dcOut chan dcMessage

	log *zap.Logger

	// forwarderInbox is the Session's weak handle back to its owning
	// Forwarder.
	forwarderInbox chan<- forwarderMsg

	closeOnce sync.Once
	closed    chan struct{}
}

type dcMessage struct {
	data   []byte
	isText bool
}

// NewSession constructs a Session around an already-created PeerConnection.
// Track/DataChannel handlers are wired by the caller (internal/signalling) since
// they need to publish events back onto the Forwarder's inbox.
func NewSession(id, streamID string, role Role, pc *webrtc.PeerConnection, forwarderInbox chan<- forwarderMsg, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		ID:             id,
		StreamID:       streamID,
		Role:           role,
		CreatedAt:      time.Now(),
		pc:             pc,
		state:          StateNew,
		sendQueues:     make(map[uint32]chan []byte),
		dropCounts:     make(map[uint32]*uint64),
		dcOut:          make(chan dcMessage, dataChannelQueueSize),
		log:            log,
		forwarderInbox: forwarderInbox,
		closed:         make(chan struct{}),
	}
}

// NewSessionID mints an opaque, server-generated session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// State returns the session's current connection state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState transitions the session's state through its lifecycle machine.
func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// OnICEStateChange wires the PeerConnection's ICE/connection-state events
// into the session's state machine and notifies the Forwarder when the
// session first reaches Connected and when it reaches Failed. When iceConnectTimeout is positive, a session that never
// reaches Connected within it is force-transitioned to Failed; the Core does not attempt to restart ICE.
func (s *Session) OnICEStateChange(iceConnectTimeout time.Duration) {
	if iceConnectTimeout > 0 {
		timer := time.AfterFunc(iceConnectTimeout, func() {
			if s.State() == StateConnected || s.State() == StateClosed || s.State() == StateFailed {
				return
			}
			s.log.Warn("ice connect timeout", zap.String("session", s.ID))
			s.setState(StateFailed)
			s.notifyForwarder(forwarderMsg{kind: msgSessionFailed, session: s})
		})
		go func() {
			<-s.closed
			timer.Stop()
		}()
	}

	s.pc.OnConnectionStateChange(func(pcs webrtc.PeerConnectionState) {
		switch pcs {
		case webrtc.PeerConnectionStateConnecting:
			s.setState(StateConnecting)
		case webrtc.PeerConnectionStateConnected:
			wasNew := s.State() != StateConnected
			s.setState(StateConnected)
			if wasNew {
				s.notifyForwarder(forwarderMsg{kind: msgSessionConnected, session: s})
			}
		case webrtc.PeerConnectionStateDisconnected:
			s.setState(StateDisconnected)
		case webrtc.PeerConnectionStateFailed:
			s.setState(StateFailed)
			s.notifyForwarder(forwarderMsg{kind: msgSessionFailed, session: s})
		case webrtc.PeerConnectionStateClosed:
			s.setState(StateClosed)
		}
	})
}

func (s *Session) notifyForwarder(m forwarderMsg) {
	select {
	case s.forwarderInbox <- m:
	case <-s.closed:
	}
}

// OpenSendQueue opens (or replaces) the bounded per-track send queue used by
// a subscriber session, discarding any backlog ("only
// packets produced strictly after attach are delivered").
func (s *Session) OpenSendQueue(ssrc uint32, track *webrtc.TrackLocalStaticRTP) chan []byte {
	q := make(chan []byte, sendQueueSize)
	var drops uint64
	s.mu.Lock()
	s.sendQueues[ssrc] = q
	s.dropCounts[ssrc] = &drops
	s.mu.Unlock()

	go s.pumpSendQueue(q, track)
	return q
}

func (s *Session) pumpSendQueue(q chan []byte, track *webrtc.TrackLocalStaticRTP) {
	for {
		select {
		case pkt, ok := <-q:
			if !ok {
				return
			}
			if _, err := track.Write(pkt); err != nil {
				s.log.Debug("track write failed", zap.String("session", s.ID), zap.Error(err))
			}
		case <-s.closed:
			return
		}
	}
}

// Enqueue hands a packet to the named track's send queue, dropping the
// newest packet (this one) and incrementing the drop counter when full —
// never blocking the caller.
func (s *Session) Enqueue(ssrc uint32, packet []byte) (delivered bool) {
	s.mu.RLock()
	q, ok := s.sendQueues[ssrc]
	drops := s.dropCounts[ssrc]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case q <- packet:
		return true
	default:
		if drops != nil {
			*drops++
		}
		return false
	}
}

// DropCount returns the subscriber's drop counter for a track, for metrics
// and tests.
func (s *Session) DropCount(ssrc uint32) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.dropCounts[ssrc]; ok {
		return *d
	}
	return 0
}

// SendRTCP writes an RTCP packet upstream/downstream on this session's
// peer connection.
func (s *Session) SendRTCP(pkts ...rtcp.Packet) error {
	return s.pc.WriteRTCP(pkts)
}

// SetDataChannel installs the single DataChannel this peer connection owns
//.
func (s *Session) SetDataChannel(dc *webrtc.DataChannel) {
	s.mu.Lock()
	s.dc = dc
	s.mu.Unlock()

	dc.OnOpen(func() {
		go s.pumpDataChannel()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.notifyForwarder(forwarderMsg{
			kind:    msgDataChannelMessage,
			session: s,
			dcData:  msg.Data,
			dcText:  msg.IsString,
		})
	})
}

func (s *Session) pumpDataChannel() {
	s.mu.RLock()
	dc := s.dc
	s.mu.RUnlock()
	if dc == nil {
		return
	}
	for {
		select {
		case m, ok := <-s.dcOut:
			if !ok {
				return
			}
			var err error
			if m.isText {
				err = dc.SendText(string(m.data))
			} else {
				err = dc.Send(m.data)
			}
			if err != nil {
				s.log.Debug("datachannel send failed", zap.String("session", s.ID), zap.Error(err))
			}
		case <-s.closed:
			return
		}
	}
}

// SendDataChannel enqueues an application message for delivery, dropping the
// oldest queued message (not this one) on overflow — the
// fabric is lossy under overload, never blocking.
func (s *Session) SendDataChannel(data []byte, isText bool) (delivered bool) {
	msg := dcMessage{data: data, isText: isText}
	select {
	case s.dcOut <- msg:
		return true
	default:
		select {
		case <-s.dcOut:
		default:
		}
		select {
		case s.dcOut <- msg:
			return true
		default:
			return false
		}
	}
}

// Close tears down the peer connection and cancels the session's tasks.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.pc.Close()
		s.setState(StateClosed)
	})
	return err
}

// CreateAnswer negotiates an SDP answer for the given offer and returns it
// once ICE gathering (non-trickle portion) completes, or once
// sdpExchangeTimeout elapses — whichever comes first. Trickle-ICE (PATCH)
// carries any candidates gathered after the deadline, so a slow gatherer
// degrades to pure trickle rather than failing the exchange.
func (s *Session) CreateAnswer(offer webrtc.SessionDescription, sdpExchangeTimeout time.Duration) (webrtc.SessionDescription, error) {
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	if sdpExchangeTimeout > 0 {
		select {
		case <-gatherComplete:
		case <-time.After(sdpExchangeTimeout):
		}
	} else {
		<-gatherComplete
	}
	return *s.pc.LocalDescription(), nil
}

// AddICECandidate applies a trickled ICE candidate fragment (PATCH body).
func (s *Session) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return s.pc.AddICECandidate(candidate)
}
