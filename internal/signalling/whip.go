package signalling

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/live777/live777-go/internal/webrtcsfu"
	"github.com/live777/live777-go/pkg/response"
)

// handleWHIP implements `POST /whip/{stream}`: publishes a
// stream. Auto-creates the stream when configured; rejects with 409 if a
// publisher already occupies the slot.
func (s *Server) handleWHIP(c *gin.Context) {
	streamID := c.Param("stream")
	markerHeader := c.GetHeader(webrtcsfu.NodeHeader)
	if s.cascade.SeenOwnMarker(markerHeader) {
		s.metrics.Inc("live777_cascade_loop_rejected_total", 1)
		response.LoopDetected(c, "cascade loop detected")
		return
	}
	if chain := webrtcsfu.ParseMarkerChain(markerHeader); len(chain) > 0 {
		s.recordCascadeMarkerChain(streamID, chain)
	}

	offerBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read offer body")
		return
	}
	if len(offerBytes) == 0 {
		response.BadRequest(c, "empty SDP offer")
		return
	}

	f, existed := s.registry.Get(streamID)
	if !existed {
		if !s.cfg.Server.AutoCreateWhip {
			response.NotFound(c, "stream does not exist")
			return
		}
		f, _ = s.registry.GetOrCreate(streamID)
		s.audit.RecordStreamCreated(c.Request.Context(), streamID)
	}
	if f.HasPublisher() {
		response.Conflict(c, "stream already has a publisher")
		return
	}

	pc, err := s.peers.New(s.iceServersFor(c))
	if err != nil {
		response.Internal(c, "failed to create peer connection")
		return
	}

	sess := webrtcsfu.NewSession(webrtcsfu.NewSessionID(), streamID, webrtcsfu.RolePublish, pc, f.Inbox(), s.log)
	sess.OnICEStateChange(s.cfg.Timers.ICEConnectTimeout)
	webrtcsfu.OnDataChannel(pc, sess)

	tracks := make([]webrtcsfu.Track, 0, 2)
	attachOnce := make(chan struct{}, 1)
	pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		kind := webrtcsfu.KindVideo
		if remote.Kind() == webrtc.RTPCodecTypeAudio {
			kind = webrtcsfu.KindAudio
		}
		codec, _ := s.peers.CodecForPayloadType(remote.PayloadType())
		track := webrtcsfu.Track{
			SSRC:        uint32(remote.SSRC()),
			PayloadType: remote.PayloadType(),
			Codec:       codec,
			ClockRate:   remote.Codec().ClockRate,
			Kind:        kind,
		}
		tracks = append(tracks, track)
		select {
		case attachOnce <- struct{}{}:
			f.AttachPublisher(sess, append([]webrtcsfu.Track(nil), tracks...))
		default:
		}
		go s.readPublisherRTP(f, track.SSRC, remote)
		go s.readPublisherRTCP(f, receiver)
	})

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offerBytes)}
	answer, err := sess.CreateAnswer(offer, s.cfg.Timers.SDPExchangeTimeout)
	if err != nil {
		_ = pc.Close()
		response.BadRequest(c, fmt.Sprintf("sdp negotiation failed: %v", err))
		return
	}

	s.trackSession(sess)
	s.metrics.Inc("publish", 1)

	c.Header("Location", fmt.Sprintf("/session/%s/%s", streamID, sess.ID))
	s.writeICELinkHeaders(c)
	response.SDP(c, http.StatusCreated, answer.SDP)
}

// readPublisherRTP pumps RTP packets from a publisher's remote track into
// the Forwarder's ingestion path.
func (s *Server) readPublisherRTP(f *webrtcsfu.Forwarder, ssrc uint32, remote *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			return
		}
		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		f.IngestPublisherRTP(ssrc, pkt, raw)
	}
}

// readPublisherRTCP drains the interceptor pipeline's outgoing RTCP reader
// for a publisher's RTPReceiver; required for NACK/PLI interceptors to
// function (see Eson-Jia-webrtc's whip-whep example). Any SenderReport the
// publisher sends is forwarded into the Forwarder so it can cache the
// NTP/RTP time pair used to build its own downstream SRs.
func (s *Server) readPublisherRTCP(f *webrtcsfu.Forwarder, receiver *webrtc.RTPReceiver) {
	buf := make([]byte, 1500)
	for {
		n, _, err := receiver.Read(buf)
		if err != nil {
			return
		}
		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		for _, pkt := range pkts {
			if sr, ok := pkt.(*rtcp.SenderReport); ok {
				f.IngestPublisherSR(sr)
			}
		}
	}
}
