package webrtcsfu

import (
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// maxForwardMTU is the outbound RTP payload ceiling the Forwarder enforces
// before it will split a packet. Publisher encoders almost always already
// packetize under this, so the path below is exercised only for the rare
// oversized packet (typically a VP8/VP9 keyframe slice from an encoder that
// packetizes for a larger path MTU than this deployment's).
const maxForwardMTU = 1200

// repayloader splits an RTP payload that exceeds mtu back into multiple
// RTP-sized chunks. Only VP8 and VP9 carry an in-band payload descriptor
// that survives being split and reassembled by a downstream decoder —
// per spec.md §4.4, these are the only codecs the Forwarder will
// re-payload; every other codec is forwarded as a single packet unsplit.
type repayloader interface {
	Payload(mtu uint16, payload []byte) [][]byte
}

func newRepayloader(codec Codec) repayloader {
	switch codec {
	case CodecVP8:
		return &codecs.VP8Payloader{}
	case CodecVP9:
		return &codecs.VP9Payloader{}
	default:
		return nil
	}
}

// splitForMTU returns the packets the Forwarder should actually push
// downstream for one inbound publisher packet, every one stamped with
// SequenceNumber starting at seqBase — the caller (Forwarder.ingestRTP)
// always passes the track's rebased sequence number so a prior split's
// fragment count stays folded into every later packet, split or not. When
// the payload already fits maxForwardMTU or the codec has no repayloader,
// that is a single fragment carrying the original payload unsplit. When
// splitting is required, fragments keep the original packet's header (SSRC
// is rewritten per-subscriber downstream by pion's TrackLocalStaticRTP,
// untouched here) except SequenceNumber, assigned consecutively from
// seqBase, and Marker, set only on the final fragment per RTP framing
// convention.
func splitForMTU(codec Codec, pkt *rtp.Packet, seqBase uint16) []*rtp.Packet {
	if len(pkt.Payload) <= maxForwardMTU {
		hdr := pkt.Header
		hdr.SequenceNumber = seqBase
		return []*rtp.Packet{{Header: hdr, Payload: pkt.Payload}}
	}
	payloader := newRepayloader(codec)
	if payloader == nil {
		hdr := pkt.Header
		hdr.SequenceNumber = seqBase
		return []*rtp.Packet{{Header: hdr, Payload: pkt.Payload}}
	}
	chunks := payloader.Payload(uint16(maxForwardMTU), pkt.Payload)
	if len(chunks) == 0 {
		hdr := pkt.Header
		hdr.SequenceNumber = seqBase
		return []*rtp.Packet{{Header: hdr, Payload: pkt.Payload}}
	}
	out := make([]*rtp.Packet, len(chunks))
	for i, chunk := range chunks {
		hdr := pkt.Header
		hdr.SequenceNumber = seqBase + uint16(i)
		hdr.Marker = i == len(chunks)-1
		out[i] = &rtp.Packet{Header: hdr, Payload: chunk}
	}
	return out
}
