package webrtcsfu

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
)

// feedbackEngine implements: it reduces O(N)-subscriber RTCP
// volume down to a bounded, deduplicated upstream rate per track. It does
// not serve NACKs itself; the Forwarder answers them from the track's
// nackBuffer before any reach this engine. One feedbackEngine is
// owned per publisher track, and is only ever touched from the Forwarder's
// owner goroutine (see forwarder.go).
type feedbackEngine struct {
	ssrc uint32

	pliInterval  time.Duration
	nackInterval time.Duration

	pliPending    bool
	pliWindowEnd  time.Time
	nackPending   map[uint16]struct{}
	nackWindowEnd time.Time

	mu sync.Mutex
}

func newFeedbackEngine(ssrc uint32, pliInterval, nackInterval time.Duration) *feedbackEngine {
	return &feedbackEngine{
		ssrc:         ssrc,
		pliInterval:  pliInterval,
		nackInterval: nackInterval,
		nackPending:  make(map[uint16]struct{}),
	}
}

// RequestPLI records a subscriber's keyframe request. It returns true
// exactly once per coalescing window -- the caller should emit an upstream
// PLI only when this returns true ("first arrival wins").
func (e *feedbackEngine) RequestPLI(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pliPending && now.Before(e.pliWindowEnd) {
		return false
	}
	e.pliPending = true
	e.pliWindowEnd = now.Add(e.pliInterval)
	return true
}

// AckPLIWindow clears the pending flag once this track's own coalescing
// window has actually elapsed. Called every NACK-ticker tick (far shorter
// than pliInterval), so it must re-check pliWindowEnd itself rather than
// clearing unconditionally — otherwise the 20ms tick cadence, not
// pliInterval, would gate RequestPLI's suppression.
func (e *feedbackEngine) AckPLIWindow(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pliPending && now.Before(e.pliWindowEnd) {
		return
	}
	e.pliPending = false
}

// RequestNACK merges a subscriber's missing-sequence set into the pending
// upstream set, and reports whether an upstream NACK flush is due (i.e. the
// coalescing window for this track has elapsed).
func (e *feedbackEngine) RequestNACK(now time.Time, seqs []uint16) (flush bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range seqs {
		e.nackPending[s] = struct{}{}
	}
	if len(e.nackPending) == 0 {
		return false
	}
	if now.Before(e.nackWindowEnd) {
		return false
	}
	e.nackWindowEnd = now.Add(e.nackInterval)
	return true
}

// DrainNACKs returns and clears the deduplicated pending sequence-number set.
func (e *feedbackEngine) DrainNACKs() []uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]uint16, 0, len(e.nackPending))
	for s := range e.nackPending {
		out = append(out, s)
	}
	e.nackPending = make(map[uint16]struct{})
	return out
}

// buildPLI constructs the upstream PictureLossIndication RTCP packet for
// this track's media SSRC.
func (e *feedbackEngine) buildPLI() rtcp.Packet {
	return &rtcp.PictureLossIndication{MediaSSRC: e.ssrc}
}

// buildNACK constructs the upstream RTCP NACK (generic NACK / TransportLayerNack)
// for a batch of missing sequence numbers.
func (e *feedbackEngine) buildNACK(seqs []uint16) rtcp.Packet {
	nack := &rtcp.TransportLayerNack{MediaSSRC: e.ssrc, Nacks: rtcp.NackPairsFromSequenceNumbers(seqs)}
	return nack
}

// receiverReport aggregates per-subscriber loss counters into the single
// upstream RR the Forwarder sends to the publisher, instead of relaying
// each subscriber's own report.
func receiverReport(ssrc uint32, packetsLost uint32, highestSeq uint32) rtcp.Packet {
	return &rtcp.ReceiverReport{
		SSRC: ssrc,
		Reports: []rtcp.ReceptionReport{
			{
				SSRC:               ssrc,
				TotalLost:          packetsLost,
				LastSequenceNumber: highestSeq,
			},
		},
	}
}

// senderReport builds the downstream SR the Forwarder sends to subscribers,
// reflecting the publisher's own timing (NTP/RTP time pair last observed
// from its SR) plus the packet/octet counts actually forwarded to
// subscribers on this track.
func senderReport(ssrc uint32, ntpTime uint64, rtpTime, packetCount, octetCount uint32) rtcp.Packet {
	return &rtcp.SenderReport{
		SSRC:        ssrc,
		NTPTime:     ntpTime,
		RTPTime:     rtpTime,
		PacketCount: packetCount,
		OctetCount:  octetCount,
	}
}
