package signalling

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/live777/live777-go/internal/webrtcsfu"
	"github.com/live777/live777-go/pkg/response"
)

// handleWHEP implements `POST /whep/{stream}`: subscribes to
// a stream. Rejects with 404 when the stream is absent and auto-create-whep
// is disabled.
func (s *Server) handleWHEP(c *gin.Context) {
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
		if !s.cfg.Server.AutoCreateWhep {
			response.NotFound(c, "stream does not exist")
			return
		}
		f, _ = s.registry.GetOrCreate(streamID)
		s.audit.RecordStreamCreated(c.Request.Context(), streamID)
	}

	pc, err := s.peers.New(s.iceServersFor(c))
	if err != nil {
		response.Internal(c, "failed to create peer connection")
		return
	}

	sess := webrtcsfu.NewSession(webrtcsfu.NewSessionID(), streamID, webrtcsfu.RoleSubscribe, pc, f.Inbox(), s.log)
	sess.OnICEStateChange(s.cfg.Timers.ICEConnectTimeout)
	webrtcsfu.OnDataChannel(pc, sess)

	publisherTracks := f.Tracks()
	if len(publisherTracks) == 0 {
		_ = pc.Close()
		response.NotAcceptable(c, "stream has no negotiable tracks yet")
		return
	}

	for _, t := range publisherTracks {
		mime := mimeTypeForCodec(t.Codec)
		localTrack, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: mime, ClockRate: t.ClockRate}, "live777", streamID)
		if err != nil {
			_ = pc.Close()
			response.Internal(c, "failed to create local track")
			return
		}
		rtpSender, err := pc.AddTrack(localTrack)
		if err != nil {
			_ = pc.Close()
			response.Internal(c, "failed to attach local track")
			return
		}
		sess.OpenSendQueue(t.SSRC, localTrack)
		go s.readSubscriberRTCP(f, t.SSRC, sess, rtpSender)
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offerBytes)}
	answer, err := sess.CreateAnswer(offer, s.cfg.Timers.SDPExchangeTimeout)
	if err != nil {
		_ = pc.Close()
		response.BadRequest(c, fmt.Sprintf("sdp negotiation failed: %v", err))
		return
	}

	f.AttachSubscriber(sess)
	s.trackSession(sess)
	s.metrics.Inc("subscribe", 1)

	c.Header("Location", fmt.Sprintf("/session/%s/%s", streamID, sess.ID))
	s.writeICELinkHeaders(c)
	response.SDP(c, http.StatusCreated, answer.SDP)
}

func mimeTypeForCodec(codec webrtcsfu.Codec) string {
	switch codec {
	case webrtcsfu.CodecAV1:
		return webrtc.MimeTypeAV1
	case webrtcsfu.CodecVP9:
		return webrtc.MimeTypeVP9
	case webrtcsfu.CodecVP8:
		return webrtc.MimeTypeVP8
	case webrtcsfu.CodecH264:
		return webrtc.MimeTypeH264
	case webrtcsfu.CodecOpus:
		return webrtc.MimeTypeOpus
	case webrtcsfu.CodecG722:
		return webrtc.MimeTypeG722
	default:
		return webrtc.MimeTypeVP8
	}
}

// readSubscriberRTCP drains a subscriber's RTPSender for incoming RTCP
// (required for pion's interceptors to function) and routes PLI/NACK
// packets into the Forwarder's feedback engine.
func (s *Server) readSubscriberRTCP(f *webrtcsfu.Forwarder, ssrc uint32, subscriber *webrtcsfu.Session, sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		for _, pkt := range pkts {
			switch p := pkt.(type) {
			case *rtcp.PictureLossIndication:
				f.HandleSubscriberPLI(ssrc)
			case *rtcp.FullIntraRequest:
				f.HandleSubscriberPLI(ssrc)
			case *rtcp.TransportLayerNack:
				seqs := make([]uint16, 0, len(p.Nacks))
				for _, pair := range p.Nacks {
					seqs = append(seqs, pair.PacketList()...)
				}
				f.HandleSubscriberNACK(subscriber, ssrc, seqs)
			}
		}
	}
}
