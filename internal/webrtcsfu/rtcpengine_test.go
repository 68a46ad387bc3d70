package webrtcsfu

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPLICoalescesWithinWindow(t *testing.T) {
	e := newFeedbackEngine(42, 100*time.Millisecond, 20*time.Millisecond)
	now := time.Now()

	assert.True(t, e.RequestPLI(now), "first arrival in a window should win")
	assert.False(t, e.RequestPLI(now.Add(10*time.Millisecond)), "second arrival in same window should be coalesced")
	assert.False(t, e.RequestPLI(now.Add(99*time.Millisecond)))
}

func TestRequestPLIOpensFreshWindowAfterAck(t *testing.T) {
	e := newFeedbackEngine(42, 100*time.Millisecond, 20*time.Millisecond)
	now := time.Now()

	require.True(t, e.RequestPLI(now))
	e.AckPLIWindow(now.Add(100 * time.Millisecond))
	assert.True(t, e.RequestPLI(now.Add(101*time.Millisecond)), "a new request after the window is acked should win again")
}

func TestAckPLIWindowIgnoresCallsBeforeWindowElapses(t *testing.T) {
	// Models the NACK ticker calling AckPLIWindow every ~20ms while
	// pliInterval is 100ms: the early calls must not clear pliPending, or
	// the coalescing window collapses to the ticker's cadence instead of
	// pliInterval.
	e := newFeedbackEngine(42, 100*time.Millisecond, 20*time.Millisecond)
	now := time.Now()

	require.True(t, e.RequestPLI(now))
	e.AckPLIWindow(now.Add(20 * time.Millisecond))
	e.AckPLIWindow(now.Add(40 * time.Millisecond))
	e.AckPLIWindow(now.Add(60 * time.Millisecond))
	e.AckPLIWindow(now.Add(80 * time.Millisecond))
	assert.False(t, e.RequestPLI(now.Add(90*time.Millisecond)), "pliPending must survive ticks that land inside the coalescing window")

	e.AckPLIWindow(now.Add(101 * time.Millisecond))
	assert.True(t, e.RequestPLI(now.Add(102*time.Millisecond)), "the window should clear once it actually elapses")
}

func TestRequestPLIOpensFreshWindowAfterExpiry(t *testing.T) {
	e := newFeedbackEngine(42, 100*time.Millisecond, 20*time.Millisecond)
	now := time.Now()

	require.True(t, e.RequestPLI(now))
	assert.True(t, e.RequestPLI(now.Add(200*time.Millisecond)), "a request after the coalescing window elapses should win again")
}

func TestRequestNACKMergesAndFlushesOnSchedule(t *testing.T) {
	e := newFeedbackEngine(7, 100*time.Millisecond, 20*time.Millisecond)
	now := time.Now()

	flush := e.RequestNACK(now, []uint16{1, 2})
	assert.True(t, flush, "first request should flush immediately")

	flush = e.RequestNACK(now.Add(5*time.Millisecond), []uint16{3})
	assert.False(t, flush, "a second request inside the coalescing window should not flush yet")

	drained := e.DrainNACKs()
	assert.ElementsMatch(t, []uint16{1, 2, 3}, drained)
}

func TestDrainNACKsClearsPendingSet(t *testing.T) {
	e := newFeedbackEngine(7, 100*time.Millisecond, 20*time.Millisecond)
	e.RequestNACK(time.Now(), []uint16{1})
	first := e.DrainNACKs()
	assert.Len(t, first, 1)

	second := e.DrainNACKs()
	assert.Empty(t, second)
}

func TestRequestNACKNoOpOnEmptySeqsWithNothingPending(t *testing.T) {
	e := newFeedbackEngine(7, 100*time.Millisecond, 20*time.Millisecond)
	flush := e.RequestNACK(time.Now(), nil)
	assert.False(t, flush)
}

func TestBuildPLIUsesTrackSSRC(t *testing.T) {
	e := newFeedbackEngine(99, time.Second, time.Second)
	pkt := e.buildPLI()
	pli, ok := pkt.(*rtcp.PictureLossIndication)
	require.True(t, ok)
	assert.Equal(t, uint32(99), pli.MediaSSRC)
}

func TestBuildNACKEncodesRequestedSequences(t *testing.T) {
	e := newFeedbackEngine(99, time.Second, time.Second)
	pkt := e.buildNACK([]uint16{10, 11, 12})
	nack, ok := pkt.(*rtcp.TransportLayerNack)
	require.True(t, ok)
	assert.Equal(t, uint32(99), nack.MediaSSRC)

	var seen []uint16
	for _, pair := range nack.Nacks {
		seen = append(seen, pair.PacketList()...)
	}
	assert.ElementsMatch(t, []uint16{10, 11, 12}, seen)
}

func TestReceiverReportAggregatesLoss(t *testing.T) {
	pkt := receiverReport(55, 3, 1000)
	rr, ok := pkt.(*rtcp.ReceiverReport)
	require.True(t, ok)
	require.Len(t, rr.Reports, 1)
	assert.Equal(t, uint32(3), rr.Reports[0].TotalLost)
	assert.Equal(t, uint32(1000), rr.Reports[0].LastSequenceNumber)
}
