// Package webrtcsfu: Forwarder is the Core's heart. One
// Forwarder owns exactly one stream: its publisher slot, its subscriber
// set, per-track NACK buffers and feedback coalescers, and the DataChannel
// fabric. All mutation is serialized through a single inbox channel,
// the same single-goroutine-behind-a-command-channel shape as a
// realtime.SFU-style hub loop, generalized here from a fixed two-party
// call to N publisher/subscriber fan-out.
package webrtcsfu

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"go.uber.org/zap"
)

type forwarderMsgKind int

const (
	msgAttachPublisher forwarderMsgKind = iota
	msgAttachSubscriber
	msgDetachSession
	msgPublisherRTP
	msgSubscriberPLI
	msgSubscriberNACK
	msgSessionConnected
	msgSessionFailed
	msgDataChannelMessage
	msgRegisterRecordingSink
	msgUnregisterRecordingSink
	msgEvictLocalSubscribers
	msgPublisherSR
	msgShutdown
	msgProbe
)

type forwarderMsg struct {
	kind    forwarderMsgKind
	session *Session

	ssrc        uint32
	packet      *rtp.Packet
	raw         []byte
	seqs        []uint16
	dcData      []byte
	dcText      bool
	tracks      []Track
	sink        RecordingSink
	sr          *rtcp.SenderReport
	shutdownAck chan struct{}
	probe       func(*Forwarder)
}

// RecordingSink receives a copy of every RTP packet the publisher produces.
// Defined here (rather than imported from internal/recorder) so the Core
// has no dependency on the optional recording tap; internal/recorder
// implements this interface structurally.
type RecordingSink interface {
	WriteRTP(kind MediaKind, packet []byte)
}

type trackState struct {
	Track
	nack     *nackBuffer
	feedback *feedbackEngine

	// loss-tracking/reporting state, owner-goroutine-only.
	seqInited    bool
	highestSeq   uint16
	lostSinceRR  uint32
	forwardedPkt uint32
	forwardedOct uint32
	lastSRNTP    uint64
	lastSRRTP    uint32

	// seqOffset accumulates the cumulative sequence-number shift introduced
	// by VP8/VP9 re-payload splits (each split packet replaced by N
	// fragments pushes every later packet forward by N-1). Zero for the
	// lifetime of a track that never needed a split, which keeps
	// SequenceNumber untouched — the only rewrite spec.md §4.4 allows
	// besides the per-subscriber SSRC swap.
	seqOffset uint16
}

// observe updates loss/highest-sequence bookkeeping for one inbound
// publisher packet, adding any forward sequence gap to lostSinceRR (a
// simple gap count, not full RFC 3550 reordering accounting).
func (ts *trackState) observe(seq uint16, payloadLen int) {
	if !ts.seqInited {
		ts.seqInited = true
		ts.highestSeq = seq
	} else if gap := int16(seq - ts.highestSeq - 1); gap > 0 {
		ts.lostSinceRR += uint32(gap)
		ts.highestSeq = seq
	} else if int16(seq-ts.highestSeq) > 0 {
		ts.highestSeq = seq
	}
	ts.forwardedPkt++
	ts.forwardedOct += uint32(payloadLen)
}

// Forwarder routes RTP/RTCP/DataChannel traffic for one stream.
type Forwarder struct {
	StreamID  string
	CreatedAt time.Time

	cfg ForwarderConfig
	log *zap.Logger

	inbox chan forwarderMsg
	done  chan struct{}

	// owner-goroutine-only state
	publisher   *Session
	subscribers map[string]*Session
	tracks      map[uint32]*trackState
	recording   RecordingSink
	cascadeSt   *cascadeState
	lastActive  time.Time

	// cascadeIdleSince is zero while a pull cascade has at least one
	// non-cascade subscriber, and set to the moment it loses its last one;
	// checkCascadeIdle tears the pull down once that has held for
	// cfg.CascadeIdleTTL, per spec.md §4.7's idle-pull policy.
	cascadeIdleSince time.Time

	// snapshot is a read-mostly cache refreshed by the owner goroutine after
	// every mutating message, letting enumeration (registry listing,
	// recorder.Tracks) read without going through the inbox.
	snapMu   sync.RWMutex
	snapshot StreamView
	snapTrk  []Track
}

// ForwarderConfig carries the timer knobs names.
type ForwarderConfig struct {
	KeyframeRequestInterval time.Duration
	NackUpstreamInterval    time.Duration
	CascadeIdleTTL          time.Duration
}

// NewForwarder creates a Forwarder and starts its owner goroutine. Callers
// must call Close when the stream is torn down.
func NewForwarder(streamID string, cfg ForwarderConfig, log *zap.Logger) *Forwarder {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Forwarder{
		StreamID:    streamID,
		CreatedAt:   time.Now(),
		cfg:         cfg,
		log:         log,
		inbox:       make(chan forwarderMsg, 1024),
		done:        make(chan struct{}),
		subscribers: make(map[string]*Session),
		tracks:      make(map[uint32]*trackState),
		lastActive:  time.Now(),
	}
	f.refreshSnapshot()
	go f.run()
	return f
}

func (f *Forwarder) run() {
	ticker := time.NewTicker(f.cfg.NackUpstreamInterval)
	defer ticker.Stop()
	for {
		select {
		case m := <-f.inbox:
			if m.kind == msgShutdown {
				f.closeAllSessions()
				close(f.done)
				close(m.shutdownAck)
				return
			}
			f.handle(m)
		case <-ticker.C:
			f.flushFeedback()
			f.sendPeriodicReports()
			f.checkCascadeIdle()
		case <-f.done:
			return
		}
	}
}

// closeAllSessions closes every session the Forwarder currently owns.
func (f *Forwarder) closeAllSessions() {
	if f.publisher != nil {
		_ = f.publisher.Close()
	}
	for _, sub := range f.subscribers {
		_ = sub.Close()
	}
}

// send posts a message to the inbox, blocking while the inbox is full until
// it accepts the message or the Forwarder has shut down. It carries both
// control messages and publisher RTP ingestion.
func (f *Forwarder) send(m forwarderMsg) {
	select {
	case f.inbox <- m:
	case <-f.done:
	}
}

func (f *Forwarder) handle(m forwarderMsg) {
	switch m.kind {
	case msgAttachPublisher:
		f.attachPublisher(m.session, m.tracks)
	case msgAttachSubscriber:
		f.attachSubscriber(m.session)
	case msgDetachSession:
		f.detachSession(m.session)
	case msgPublisherRTP:
		f.ingestRTP(m.ssrc, m.packet, m.raw)
	case msgSubscriberPLI:
		f.handlePLI(m.ssrc)
	case msgSubscriberNACK:
		f.handleNACK(m.ssrc, m.seqs, m.session)
	case msgSessionConnected:
		f.onSessionConnected(m.session)
	case msgSessionFailed:
		f.detachSession(m.session)
	case msgDataChannelMessage:
		f.relayDataChannel(m.session, m.dcData, m.dcText)
	case msgRegisterRecordingSink:
		f.recording = m.sink
	case msgUnregisterRecordingSink:
		f.recording = nil
	case msgEvictLocalSubscribers:
		f.evictLocalSubscribers(m.session)
	case msgPublisherSR:
		f.handlePublisherSR(m.ssrc, m.sr)
	case msgProbe:
		m.probe(f)
		return
	}
	f.refreshSnapshot()
}

// evictLocalSubscribers closes every subscriber except the cascade-push
// session itself: once a cascade-push
// places a copy of the stream near a remote subscriber set, this node's own
// subscribers are migrated there and their local sessions closed.
func (f *Forwarder) evictLocalSubscribers(exceptCascade *Session) {
	for id, sub := range f.subscribers {
		if sub == exceptCascade {
			continue
		}
		delete(f.subscribers, id)
		go func(s *Session) { _ = s.Close() }(sub)
	}
}

// attachPublisher installs the stream's publisher slot. Invariant: at most
// one publisher — the registry/session
// layer is responsible for rejecting a second WHIP before this is called.
func (f *Forwarder) attachPublisher(s *Session, tracks []Track) {
	f.publisher = s
	f.lastActive = time.Now()
	f.tracks = make(map[uint32]*trackState, len(tracks))
	for _, t := range tracks {
		f.tracks[t.SSRC] = &trackState{
			Track:    t,
			nack:     newNackBuffer(),
			feedback: newFeedbackEngine(t.SSRC, f.cfg.KeyframeRequestInterval, f.cfg.NackUpstreamInterval),
		}
	}
	if s.Cascade != nil {
		f.cascadeSt = &cascadeState{direction: s.Cascade.Direction, peerURL: s.Cascade.PeerURL, cancel: s.Cascade.OnTeardown}
	}
	// A new publisher means existing subscribers need a fresh decode point
	//: re-issue keyframe requests for every track.
	for ssrc := range f.tracks {
		f.requestUpstreamPLI(ssrc)
	}
}

// attachSubscriber admits a subscriber session. Its send queues are opened
// by the caller (signalling handler) once per-track local tracks exist;
// here we just track membership. The initial keyframe request is issued
// by onSessionConnected once the subscriber connects.
func (f *Forwarder) attachSubscriber(s *Session) {
	f.subscribers[s.ID] = s
	f.lastActive = time.Now()
	if s.Cascade != nil {
		f.cascadeSt = &cascadeState{direction: s.Cascade.Direction, peerURL: s.Cascade.PeerURL, cancel: s.Cascade.OnTeardown}
	}
}

func (f *Forwarder) onSessionConnected(s *Session) {
	if s.Role != RoleSubscribe {
		return
	}
	for ssrc := range f.tracks {
		f.requestUpstreamPLI(ssrc)
	}
}

func (f *Forwarder) detachSession(s *Session) {
	if s == nil {
		return
	}
	f.lastActive = time.Now()
	if f.publisher == s {
		f.publisher = nil
		// publisher-absent mode: subscribers keep their sessions but
		// receive no packets. A cascade-pull publisher leaving releases the
		// remote WHEP lease it held; a cascade-push has nothing left to
		// push once the local publisher is gone. Either way, tear it down.
		if f.cascadeSt != nil {
			f.teardownCascade()
		}
		return
	}
	if _, ok := f.subscribers[s.ID]; ok {
		delete(f.subscribers, s.ID)
		if s.Cascade != nil {
			f.teardownCascade()
		}
	}
}

// ingestRTP is the publisher-ingress fast path. Per spec.md §4.4, a packet
// is forwarded untouched except for (a) the per-subscriber SSRC rewrite
// pion's TrackLocalStaticRTP applies on write, and (b) VP8/VP9 re-payload
// splitting when the outbound MTU requires it; splitForMTU is a no-op for
// every other codec and for any packet that already fits, so the common
// case below still marshals exactly the bytes the publisher sent.
func (f *Forwarder) ingestRTP(ssrc uint32, packet *rtp.Packet, raw []byte) {
	f.lastActive = time.Now()
	ts, ok := f.tracks[ssrc]
	if !ok {
		return
	}
	frames := splitForMTU(ts.Codec, packet, packet.SequenceNumber+ts.seqOffset)
	for i, frag := range frames {
		fragRaw := raw
		if len(frames) != 1 || ts.seqOffset != 0 {
			b, err := frag.Marshal()
			if err != nil {
				continue
			}
			fragRaw = b
		}
		ts.nack.Push(frag.SequenceNumber, fragRaw)
		ts.observe(frag.SequenceNumber, len(frag.Payload))
		if ts.Kind == KindVideo && i == 0 && isKeyframeStart(ts.Codec, frag) {
			ts.LastKeyframeRTPStamp = frag.Timestamp
		}
		if f.recording != nil {
			f.recording.WriteRTP(ts.Kind, fragRaw)
		}
		for _, sub := range f.subscribers {
			sub.Enqueue(ssrc, fragRaw)
		}
	}
	if n := len(frames); n > 1 {
		ts.seqOffset += uint16(n - 1)
	}
}

// isKeyframeStart reports whether packet begins a keyframe for codec. This
// is a best-effort bitstream sniff, not full parsing, mirroring how RTP
// forwarders typically gate keyframe bookkeeping without a full decoder.
func isKeyframeStart(codec Codec, packet *rtp.Packet) bool {
	payload := packet.Payload
	if len(payload) == 0 {
		return false
	}
	switch codec {
	case CodecVP8:
		// VP8 payload descriptor: first byte is X|R|N|S|R|PID(3); S (0x10)
		// with PID 0 marks a frame-start packet, and X (0x80) adds extension
		// bytes (I with a 1- or 2-byte PictureID, L, T/K). The VP8 payload
		// header's P bit (bit 0 of the byte after the descriptor) is 0 for a
		// keyframe. Treat any frame-start packet with P==0 as a keyframe start.
		if payload[0]&0x10 == 0 || payload[0]&0x07 != 0 {
			return false
		}
		off := 1
		if payload[0]&0x80 != 0 && len(payload) > 1 {
			x := payload[1]
			off = 2
			if x&0x80 != 0 {
				off++
				if len(payload) > 2 && payload[2]&0x80 != 0 {
					off++
				}
			}
			if x&0x40 != 0 {
				off++
			}
			if x&0x30 != 0 {
				off++
			}
		}
		return len(payload) > off && payload[off]&0x01 == 0
	case CodecVP9:
		// VP9 payload descriptor: P (0x40) set means inter-predicted; B
		// (0x08) marks the start of a frame.
		return payload[0]&0x40 == 0 && payload[0]&0x08 != 0
	case CodecH264:
		nalType := payload[0] & 0x1F
		return nalType == 5 || nalType == 7
	default:
		return false
	}
}

func (f *Forwarder) handlePLI(ssrc uint32) {
	f.requestUpstreamPLI(ssrc)
}

func (f *Forwarder) requestUpstreamPLI(ssrc uint32) {
	ts, ok := f.tracks[ssrc]
	if !ok || f.publisher == nil {
		return
	}
	if ts.feedback.RequestPLI(time.Now()) {
		_ = f.publisher.SendRTCP(ts.feedback.buildPLI())
	}
}

// handleNACK resolves a subscriber's missing sequence-number request
// against the track's NACK buffer: served packets are resent on the
// requesting subscriber's own track only, and the unserved residue is
// coalesced into at most one upstream NACK per nack_upstream_interval
//.
func (f *Forwarder) handleNACK(ssrc uint32, seqs []uint16, requester *Session) {
	ts, ok := f.tracks[ssrc]
	if !ok {
		return
	}
	served, missing := ts.nack.Resolve(seqs)
	if requester != nil {
		for _, pkt := range served {
			requester.Enqueue(ssrc, pkt)
		}
	}
	if len(missing) == 0 || f.publisher == nil {
		return
	}
	if ts.feedback.RequestNACK(time.Now(), missing) {
		drained := ts.feedback.DrainNACKs()
		_ = f.publisher.SendRTCP(ts.feedback.buildNACK(drained))
	}
}

func (f *Forwarder) flushFeedback() {
	now := time.Now()
	for _, ts := range f.tracks {
		ts.feedback.AckPLIWindow(now)
	}
}

// handlePublisherSR caches the publisher's NTP/RTP time pair for a track so
// sendPeriodicReports can stamp downstream SRs with the publisher's own
// timing
func (f *Forwarder) handlePublisherSR(ssrc uint32, sr *rtcp.SenderReport) {
	ts, ok := f.tracks[ssrc]
	if !ok || sr == nil {
		return
	}
	ts.lastSRNTP = sr.NTPTime
	ts.lastSRRTP = sr.RTPTime
}

// sendPeriodicReports builds and sends the Forwarder's own RTCP reports: one
// aggregated RR per track to the publisher, and one SR per track to every
// subscriber, instead of relaying peers' own reports verbatim.
func (f *Forwarder) sendPeriodicReports() {
	if f.publisher == nil {
		return
	}
	for ssrc, ts := range f.tracks {
		rr := receiverReport(ssrc, ts.lostSinceRR, uint32(ts.highestSeq))
		_ = f.publisher.SendRTCP(rr)

		if ts.lastSRNTP == 0 && ts.lastSRRTP == 0 {
			continue
		}
		sr := senderReport(ssrc, ts.lastSRNTP, ts.lastSRRTP, ts.forwardedPkt, ts.forwardedOct)
		for _, sub := range f.subscribers {
			_ = sub.SendRTCP(sr)
		}
	}
}

// relayDataChannel implements the publisher-as-hub fan-out: publisher
// messages go to every subscriber in send order; subscriber messages go
// only to the publisher.
func (f *Forwarder) relayDataChannel(from *Session, data []byte, isText bool) {
	if from.Role == RolePublish {
		for _, sub := range f.subscribers {
			sub.SendDataChannel(data, isText)
		}
		return
	}
	if f.publisher != nil {
		f.publisher.SendDataChannel(data, isText)
	}
}

func (f *Forwarder) teardownCascade() {
	if f.cascadeSt == nil {
		return
	}
	if f.cascadeSt.cancel != nil {
		f.cascadeSt.cancel()
	}
	f.cascadeSt = nil
	f.cascadeIdleSince = time.Time{}
}

// hasNonCascadeSubscriber reports whether any subscriber is a genuine WHEP
// viewer rather than this stream's own cascade-push session.
func (f *Forwarder) hasNonCascadeSubscriber() bool {
	for _, sub := range f.subscribers {
		if sub.Cascade == nil {
			return true
		}
	}
	return false
}

// checkCascadeIdle tears down a pull cascade once the local stream has gone
// cascadeIdleTTL with no non-cascade subscriber to serve — pulling media
// nobody is watching only burns the upstream peer's bandwidth. Push cascades
// are unaffected here; they tear down on local publisher loss instead
// (detachSession).
func (f *Forwarder) checkCascadeIdle() {
	if f.cascadeSt == nil || f.cascadeSt.direction != CascadePull || f.cfg.CascadeIdleTTL <= 0 {
		f.cascadeIdleSince = time.Time{}
		return
	}
	if f.hasNonCascadeSubscriber() {
		f.cascadeIdleSince = time.Time{}
		return
	}
	if f.cascadeIdleSince.IsZero() {
		f.cascadeIdleSince = time.Now()
		return
	}
	if time.Since(f.cascadeIdleSince) >= f.cfg.CascadeIdleTTL {
		f.teardownCascade()
	}
}

func (f *Forwarder) trackSlice() []Track {
	out := make([]Track, 0, len(f.tracks))
	for _, ts := range f.tracks {
		out = append(out, ts.Track)
	}
	return out
}

func (f *Forwarder) buildSnapshot() StreamView {
	view := StreamView{ID: f.StreamID, CreatedAt: msSinceEpoch(f.CreatedAt)}
	if f.publisher != nil {
		view.Publish.Sessions = []SessionView{sessionView(f.publisher)}
	} else if !f.lastActive.IsZero() {
		view.Publish.LeaveAt = msSinceEpoch(f.lastActive)
	}
	for _, sub := range f.subscribers {
		view.Subscribe.Sessions = append(view.Subscribe.Sessions, sessionView(sub))
	}
	return view
}

func sessionView(s *Session) SessionView {
	v := SessionView{ID: s.ID, CreatedAt: msSinceEpoch(s.CreatedAt), State: string(s.State())}
	if s.Cascade != nil {
		cv := &CascadeView{SessionURL: s.Cascade.SessionURL}
		if s.Cascade.Direction == CascadePull {
			cv.SourceURL = s.Cascade.PeerURL
		} else {
			cv.TargetURL = s.Cascade.PeerURL
		}
		v.Cascade = cv
	}
	return v
}

func (f *Forwarder) refreshSnapshot() {
	snap := f.buildSnapshot()
	trks := f.trackSlice()
	f.snapMu.Lock()
	f.snapshot = snap
	f.snapTrk = trks
	f.snapMu.Unlock()
}

// --- public API consumed by internal/signalling and internal/recorder ---

// Inbox exposes the Forwarder's message channel so Session can hold a weak
// callback handle back to its owner, without either package
// needing to name the unexported forwarderMsg type directly.
func (f *Forwarder) Inbox() chan<- forwarderMsg {
	return f.inbox
}

// AttachPublisher registers s as this stream's publisher with the given
// negotiated tracks.
func (f *Forwarder) AttachPublisher(s *Session, tracks []Track) {
	f.send(forwarderMsg{kind: msgAttachPublisher, session: s, tracks: tracks})
}

// AttachSubscriber registers s as a subscriber of this stream.
func (f *Forwarder) AttachSubscriber(s *Session) {
	f.send(forwarderMsg{kind: msgAttachSubscriber, session: s})
}

// DetachSession removes s, whichever role it held.
func (f *Forwarder) DetachSession(s *Session) {
	f.send(forwarderMsg{kind: msgDetachSession, session: s})
}

// IngestPublisherRTP feeds one inbound publisher RTP packet into the
// forwarding path.
func (f *Forwarder) IngestPublisherRTP(ssrc uint32, packet *rtp.Packet, raw []byte) {
	f.send(forwarderMsg{kind: msgPublisherRTP, ssrc: ssrc, packet: packet, raw: raw})
}

// IngestPublisherSR feeds a SenderReport read off the publisher's RTCP
// stream into the Forwarder, so its periodic downstream SRs reflect the
// publisher's own timing.
func (f *Forwarder) IngestPublisherSR(sr *rtcp.SenderReport) {
	f.send(forwarderMsg{kind: msgPublisherSR, ssrc: sr.SSRC, sr: sr})
}

// HandleSubscriberPLI records a subscriber keyframe request for ssrc.
func (f *Forwarder) HandleSubscriberPLI(ssrc uint32) {
	f.send(forwarderMsg{kind: msgSubscriberPLI, ssrc: ssrc})
}

// pliPendingForTest reads a track's pliPending flag from inside the owner
// goroutine, so tests can observe feedbackEngine coalescing state without
// racing run().
func (f *Forwarder) pliPendingForTest(ssrc uint32) bool {
	result := make(chan bool, 1)
	f.send(forwarderMsg{kind: msgProbe, probe: func(fw *Forwarder) {
		ts, ok := fw.tracks[ssrc]
		result <- ok && ts.feedback.pliPending
	}})
	return <-result
}

// HandleSubscriberNACK records subscriber's missing sequence-number list
// for ssrc: packets still in the NACK buffer are resent directly to
// subscriber, and the unserved residue is coalesced into the bounded
// upstream NACK rate.
func (f *Forwarder) HandleSubscriberNACK(subscriber *Session, ssrc uint32, seqs []uint16) {
	f.send(forwarderMsg{kind: msgSubscriberNACK, session: subscriber, ssrc: ssrc, seqs: seqs})
}

// NotifyDataChannelMessage relays a message received on session's
// DataChannel per the fabric's fan-out rule.
func (f *Forwarder) NotifyDataChannelMessage(s *Session, data []byte, isText bool) {
	f.send(forwarderMsg{kind: msgDataChannelMessage, session: s, dcData: data, dcText: isText})
}

// EvictLocalSubscribers closes every current subscriber except keep
// (normally the cascade-push session itself), for the `reforward_close_sub`
// config knob.
func (f *Forwarder) EvictLocalSubscribers(keep *Session) {
	f.send(forwarderMsg{kind: msgEvictLocalSubscribers, session: keep})
}

// RegisterRecordingSink installs a tap that receives every publisher RTP
// packet until unregistered.
func (f *Forwarder) RegisterRecordingSink(sink RecordingSink) {
	f.send(forwarderMsg{kind: msgRegisterRecordingSink, sink: sink})
}

// UnregisterRecordingSink removes the current recording tap, if any.
func (f *Forwarder) UnregisterRecordingSink() {
	f.send(forwarderMsg{kind: msgUnregisterRecordingSink})
}

// View returns a point-in-time snapshot for the admin/enumeration surface.
func (f *Forwarder) View() StreamView {
	f.snapMu.RLock()
	defer f.snapMu.RUnlock()
	return f.snapshot
}

// Tracks returns the publisher's current track set.
func (f *Forwarder) Tracks() []Track {
	f.snapMu.RLock()
	defer f.snapMu.RUnlock()
	out := make([]Track, len(f.snapTrk))
	copy(out, f.snapTrk)
	return out
}

// HasPublisher reports whether a publisher currently occupies the slot.
func (f *Forwarder) HasPublisher() bool {
	v := f.View()
	return len(v.Publish.Sessions) > 0
}

// Idle reports whether the stream has had neither a publisher nor any
// subscriber for at least d.
func (f *Forwarder) Idle(d time.Duration) bool {
	v := f.View()
	if len(v.Publish.Sessions) > 0 || len(v.Subscribe.Sessions) > 0 {
		return false
	}
	leaveAt := v.Publish.LeaveAt
	if leaveAt == 0 {
		return true
	}
	return time.Since(time.UnixMilli(leaveAt)) >= d
}

// Close tears down every session on this stream and stops the owner goroutine.
func (f *Forwarder) Close() {
	closed := make(chan struct{})
	select {
	case f.inbox <- forwarderMsg{kind: msgShutdown, shutdownAck: closed}:
		<-closed
	case <-f.done:
	}
}

// RTCPPacketHandler is the shape of a per-session RTCP reader loop callback.
// Nothing in this module uses it; internal/signalling reads RTCP with
// pion/rtcp types directly.
type RTCPPacketHandler func(pkts []rtcp.Packet)
