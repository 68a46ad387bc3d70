package signalling

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/live777/live777-go/internal/webrtcsfu"
)

// startCascadePull makes this node a WHEP client of peerURL: the remote
// stream's media is injected into the local Forwarder as if published
// locally.
func (s *Server) startCascadePull(c *gin.Context, f *webrtcsfu.Forwarder, streamID, peerURL, token string) error {
	if f.HasPublisher() {
		return fmt.Errorf("stream already has a local publisher")
	}

	pc, err := s.peers.New(nil)
	if err != nil {
		return fmt.Errorf("create cascade peer connection: %w", err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		_ = pc.Close()
		return fmt.Errorf("add video transceiver: %w", err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		_ = pc.Close()
		return fmt.Errorf("add audio transceiver: %w", err)
	}

	sess := webrtcsfu.NewSession(webrtcsfu.NewSessionID(), streamID, webrtcsfu.RolePublish, pc, f.Inbox(), s.log)
	sess.Cascade = &webrtcsfu.CascadeDescriptor{Direction: webrtcsfu.CascadePull, PeerURL: peerURL, AuthToken: token}
	sess.Cascade.OnTeardown = func() { go s.teardownCascadeSession(context.Background(), sess) }
	sess.OnICEStateChange(s.cfg.Timers.ICEConnectTimeout)

	tracks := make([]webrtcsfu.Track, 0, 2)
	attachOnce := make(chan struct{}, 1)
	pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		kind := webrtcsfu.KindVideo
		if remote.Kind() == webrtc.RTPCodecTypeAudio {
			kind = webrtcsfu.KindAudio
		}
		codec, _ := s.peers.CodecForPayloadType(remote.PayloadType())
		track := webrtcsfu.Track{SSRC: uint32(remote.SSRC()), PayloadType: remote.PayloadType(), Codec: codec, ClockRate: remote.Codec().ClockRate, Kind: kind}
		tracks = append(tracks, track)
		select {
		case attachOnce <- struct{}{}:
			f.AttachPublisher(sess, append([]webrtcsfu.Track(nil), tracks...))
		default:
		}
		go s.readPublisherRTP(f, track.SSRC, remote)
		go s.readPublisherRTCP(f, receiver)
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("create cascade offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return fmt.Errorf("set cascade local description: %w", err)
	}
	<-gatherComplete

	answer, sessionURL, err := s.cascade.Pull(c.Request.Context(), peerURL, token, *pc.LocalDescription(), s.cascadeMarkerChainFor(streamID))
	if err != nil {
		_ = pc.Close()
		if err == webrtcsfu.ErrLoopDetected {
			s.audit.RecordCascadeFailed(c.Request.Context(), streamID, "loop detected")
		}
		return err
	}
	sess.Cascade.SessionURL = sessionURL
	if err := pc.SetRemoteDescription(answer); err != nil {
		_ = pc.Close()
		return fmt.Errorf("set cascade remote description: %w", err)
	}

	s.trackSession(sess)
	return nil
}

// startCascadePush makes this node a WHIP client of peerURL: the local
// publisher's media is re-published remotely.
func (s *Server) startCascadePush(c *gin.Context, f *webrtcsfu.Forwarder, streamID, peerURL, token string) error {
	publisherTracks := f.Tracks()
	if len(publisherTracks) == 0 {
		return fmt.Errorf("stream has no publisher to cascade")
	}

	pc, err := s.peers.New(nil)
	if err != nil {
		return fmt.Errorf("create cascade peer connection: %w", err)
	}

	sess := webrtcsfu.NewSession(webrtcsfu.NewSessionID(), streamID, webrtcsfu.RoleSubscribe, pc, f.Inbox(), s.log)
	sess.Cascade = &webrtcsfu.CascadeDescriptor{Direction: webrtcsfu.CascadePush, PeerURL: peerURL, AuthToken: token}
	sess.Cascade.OnTeardown = func() { go s.teardownCascadeSession(context.Background(), sess) }
	sess.OnICEStateChange(s.cfg.Timers.ICEConnectTimeout)

	for _, t := range publisherTracks {
		mime := mimeTypeForCodec(t.Codec)
		localTrack, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: mime, ClockRate: t.ClockRate}, "live777-cascade", streamID)
		if err != nil {
			_ = pc.Close()
			return fmt.Errorf("create cascade-push local track: %w", err)
		}
		rtpSender, err := pc.AddTrack(localTrack)
		if err != nil {
			_ = pc.Close()
			return fmt.Errorf("attach cascade-push local track: %w", err)
		}
		sess.OpenSendQueue(t.SSRC, localTrack)
		go s.readSubscriberRTCP(f, t.SSRC, sess, rtpSender)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("create cascade-push offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return fmt.Errorf("set cascade-push local description: %w", err)
	}
	<-gatherComplete

	answer, sessionURL, err := s.cascade.Push(c.Request.Context(), peerURL, token, *pc.LocalDescription(), s.cascadeMarkerChainFor(streamID))
	if err != nil {
		_ = pc.Close()
		if err == webrtcsfu.ErrLoopDetected {
			s.audit.RecordCascadeFailed(c.Request.Context(), streamID, "loop detected")
		}
		return err
	}
	sess.Cascade.SessionURL = sessionURL
	if err := pc.SetRemoteDescription(answer); err != nil {
		_ = pc.Close()
		return fmt.Errorf("set cascade-push remote description: %w", err)
	}

	f.AttachSubscriber(sess)
	s.trackSession(sess)
	if s.cfg.Server.ReforwardCloseSub {
		f.EvictLocalSubscribers(sess)
	}
	return nil
}

// teardownCascadeSession sends the remote DELETE for a cascade session
// and removes its local bookkeeping; used when a push cascade's publisher
// disconnects or a pull cascade's local subscribers all leave.
func (s *Server) teardownCascadeSession(ctx context.Context, sess *webrtcsfu.Session) {
	if sess.Cascade == nil {
		return
	}
	_ = s.cascade.Teardown(ctx, sess.Cascade.SessionURL, sess.Cascade.AuthToken)
	s.untrackSession(sess.ID)
	_ = sess.Close()
}
