package webrtcsfu

import (
	"bytes"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
)

func TestSplitForMTUPassesThroughUnderLimit(t *testing.T) {
	pkt := &rtp.Packet{
		Header:  rtp.Header{SequenceNumber: 42},
		Payload: bytes.Repeat([]byte{0xAB}, 100),
	}

	frames := splitForMTU(CodecVP8, pkt, 42)
	assert.Len(t, frames, 1)
	assert.Equal(t, uint16(42), frames[0].SequenceNumber)
	assert.Equal(t, pkt.Payload, frames[0].Payload)
}

func TestSplitForMTUAppliesSeqRebaseWithoutSplitting(t *testing.T) {
	pkt := &rtp.Packet{
		Header:  rtp.Header{SequenceNumber: 42},
		Payload: []byte{0x01, 0x02},
	}

	// A non-VP8/VP9 track that never splits still gets the rebase applied,
	// so a prior split's fragment count stays folded into every later
	// packet's numbering.
	frames := splitForMTU(CodecH264, pkt, 45)
	assert.Len(t, frames, 1)
	assert.Equal(t, uint16(45), frames[0].SequenceNumber)
}

func TestSplitForMTUSplitsOversizedVP8Payload(t *testing.T) {
	pkt := &rtp.Packet{
		Header:  rtp.Header{SequenceNumber: 10, Timestamp: 1000},
		Payload: bytes.Repeat([]byte{0xCD}, maxForwardMTU*2+50),
	}

	frames := splitForMTU(CodecVP8, pkt, 10)
	assert.Greater(t, len(frames), 1, "oversized VP8 payload should split into multiple fragments")

	for i, frag := range frames {
		assert.Equal(t, uint16(10)+uint16(i), frag.SequenceNumber)
		assert.LessOrEqual(t, len(frag.Payload), maxForwardMTU)
		assert.Equal(t, i == len(frames)-1, frag.Marker, "only the final fragment should carry the marker bit")
	}

	var total int
	for _, frag := range frames {
		total += len(frag.Payload)
	}
	// Every fragment carries its own VP8 payload descriptor in addition to
	// its bitstream slice, so the reassembled total is slightly larger than
	// the original single-descriptor payload, never smaller.
	assert.GreaterOrEqual(t, total, len(pkt.Payload))
}

func TestSplitForMTUUnsupportedCodecNeverSplits(t *testing.T) {
	pkt := &rtp.Packet{
		Header:  rtp.Header{SequenceNumber: 5},
		Payload: bytes.Repeat([]byte{0x01}, maxForwardMTU*3),
	}

	frames := splitForMTU(CodecOpus, pkt, 5)
	assert.Len(t, frames, 1, "codecs without a repayloader are forwarded as a single oversized packet")
}
