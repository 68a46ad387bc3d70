// Package webrtcsfu implements the Live777 forwarding core: the stream
// registry, per-stream Forwarder, peer Sessions, RTCP feedback engine,
// DataChannel fabric and cascade controller.
package webrtcsfu

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// Role distinguishes a publisher session from a subscriber session.
type Role string

const (
	RolePublish   Role = "publish"
	RoleSubscribe Role = "subscribe"
)

// SessionState mirrors the peer connection's own lifecycle states.
type SessionState string

const (
	StateNew          SessionState = "new"
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
	StateDisconnected SessionState = "disconnected"
	StateFailed       SessionState = "failed"
	StateClosed       SessionState = "closed"
)

// Codec is a media codec the Core knows how to forward.
type Codec string

const (
	CodecAV1  Codec = "AV1"
	CodecVP9  Codec = "VP9"
	CodecVP8  Codec = "VP8"
	CodecH264 Codec = "H264"
	CodecOpus Codec = "opus"
	CodecG722 Codec = "G722"
)

// MediaKind is audio or video.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

var supportedVideoCodecs = map[string]Codec{
	webrtc.MimeTypeAV1:  CodecAV1,
	webrtc.MimeTypeVP9:  CodecVP9,
	webrtc.MimeTypeVP8:  CodecVP8,
	webrtc.MimeTypeH264: CodecH264,
}

var supportedAudioCodecs = map[string]Codec{
	webrtc.MimeTypeOpus: CodecOpus,
	webrtc.MimeTypeG722: CodecG722,
}

// CascadeDirection is pull (we are the WHEP client) or push (we are the WHIP client).
type CascadeDirection string

const (
	CascadePull CascadeDirection = "pull"
	CascadePush CascadeDirection = "push"
)

// CascadeDescriptor describes one active cascade link
type CascadeDescriptor struct {
	Direction  CascadeDirection
	PeerURL    string
	SessionURL string
	AuthToken  string

	// OnTeardown, when set by the signalling layer that created this
	// session, sends the remote DELETE that releases the peer's WHIP/WHEP
	// session. The Forwarder calls it exactly once, from its own owner
	// goroutine, when the cascade link ends (for a pull: loss of the
	// publisher or the cascade idle TTL; for a push: loss of the push
	// session or of the local publisher) — it has no HTTP client of its own.
	OnTeardown func()
}

// Track is one RTP media source inside a Session.
type Track struct {
	SSRC                 uint32
	PayloadType          webrtc.PayloadType
	Codec                Codec
	ClockRate            uint32
	Kind                 MediaKind
	LastKeyframeRTPStamp uint32
}

// StreamView and SessionView are the JSON shapes of the admin/enumeration surface
// here, generalizing the JSON envelope (pkg/response) to the
// WHIP/WHEP admin object shape rather than the {success,data,error} wrapper.
type StreamView struct {
	ID        string       `json:"id"`
	CreatedAt int64        `json:"createdAt"`
	Publish   RoleView     `json:"publish"`
	Subscribe RoleView     `json:"subscribe"`
}

type RoleView struct {
	LeaveAt  int64          `json:"leaveAt"`
	Sessions []SessionView `json:"sessions"`
}

type SessionView struct {
	ID        string           `json:"id"`
	CreatedAt int64            `json:"createdAt"`
	State     string           `json:"state"`
	Cascade   *CascadeView `json:"cascade,omitempty"`
}

type CascadeView struct {
	SourceURL  string `json:"sourceUrl,omitempty"`
	TargetURL  string `json:"targetUrl,omitempty"`
	SessionURL string `json:"sessionUrl"`
}

func msSinceEpoch(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
