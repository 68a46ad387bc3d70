package webrtcsfu

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSession(t *testing.T, id, streamID string, role Role, inbox chan<- forwarderMsg) *Session {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return NewSession(id, streamID, role, pc, inbox, zap.NewNop())
}

func TestDetachPublisherTearsDownPullCascade(t *testing.T) {
	f := NewForwarder("s1", testForwarderConfig(), zap.NewNop())
	defer f.Close()

	torn := make(chan struct{}, 1)
	sess := newTestSession(t, "pull-sess", "s1", RolePublish, f.Inbox())
	sess.Cascade = &CascadeDescriptor{Direction: CascadePull, PeerURL: "http://peer/whep/s1", OnTeardown: func() { torn <- struct{}{} }}

	f.AttachPublisher(sess, []Track{{SSRC: 1, Kind: KindVideo, Codec: CodecVP8}})
	f.DetachSession(sess)

	select {
	case <-torn:
	case <-time.After(time.Second):
		t.Fatal("expected OnTeardown to fire when the cascade-pull publisher detaches")
	}
}

func TestDetachSubscriberTearsDownPushCascade(t *testing.T) {
	f := NewForwarder("s1", testForwarderConfig(), zap.NewNop())
	defer f.Close()

	torn := make(chan struct{}, 1)
	sess := newTestSession(t, "push-sess", "s1", RoleSubscribe, f.Inbox())
	sess.Cascade = &CascadeDescriptor{Direction: CascadePush, PeerURL: "http://peer/whip/s1", OnTeardown: func() { torn <- struct{}{} }}

	f.AttachSubscriber(sess)
	f.DetachSession(sess)

	select {
	case <-torn:
	case <-time.After(time.Second):
		t.Fatal("expected OnTeardown to fire when the cascade-push subscriber detaches")
	}
}

func TestPublisherLossAlsoTearsDownUnrelatedPushCascade(t *testing.T) {
	f := NewForwarder("s1", testForwarderConfig(), zap.NewNop())
	defer f.Close()

	torn := make(chan struct{}, 1)
	pub := newTestSession(t, "pub-sess", "s1", RolePublish, f.Inbox())
	push := newTestSession(t, "push-sess", "s1", RoleSubscribe, f.Inbox())
	push.Cascade = &CascadeDescriptor{Direction: CascadePush, PeerURL: "http://peer/whip/s1", OnTeardown: func() { torn <- struct{}{} }}

	f.AttachPublisher(pub, []Track{{SSRC: 1, Kind: KindVideo, Codec: CodecVP8}})
	f.AttachSubscriber(push)
	f.DetachSession(pub)

	select {
	case <-torn:
	case <-time.After(time.Second):
		t.Fatal("expected the push cascade to tear down once the local publisher is gone")
	}
}

func TestPullCascadeTearsDownAfterIdleTTLWithNoRealSubscriber(t *testing.T) {
	cfg := testForwarderConfig()
	cfg.CascadeIdleTTL = 30 * time.Millisecond
	f := NewForwarder("s1", cfg, zap.NewNop())
	defer f.Close()

	torn := make(chan struct{}, 1)
	sess := newTestSession(t, "pull-sess", "s1", RolePublish, f.Inbox())
	sess.Cascade = &CascadeDescriptor{Direction: CascadePull, PeerURL: "http://peer/whep/s1", OnTeardown: func() { torn <- struct{}{} }}
	f.AttachPublisher(sess, []Track{{SSRC: 1, Kind: KindVideo, Codec: CodecVP8}})

	select {
	case <-torn:
	case <-time.After(2 * time.Second):
		t.Fatal("expected idle pull cascade to tear itself down")
	}
}

func TestSubscriberPLICoalescesAcrossNackTicks(t *testing.T) {
	cfg := testForwarderConfig()
	cfg.NackUpstreamInterval = 20 * time.Millisecond
	cfg.KeyframeRequestInterval = time.Second
	f := NewForwarder("s1", cfg, zap.NewNop())
	defer f.Close()

	pub := newTestSession(t, "pub-sess", "s1", RolePublish, f.Inbox())
	f.AttachPublisher(pub, []Track{{SSRC: 1, Kind: KindVideo, Codec: CodecVP8}})

	f.HandleSubscriberPLI(1)
	require.True(t, f.pliPendingForTest(1), "first PLI should open a coalescing window")

	// Sleep past several NACK-ticker ticks (20ms each) but well inside the
	// 1s KeyframeRequestInterval window. Before the fix, flushFeedback's
	// unconditional AckPLIWindow cleared pliPending on the very next tick.
	time.Sleep(120 * time.Millisecond)
	assert.True(t, f.pliPendingForTest(1), "pliPending must survive NACK ticks until the PLI window elapses")
}

func TestPullCascadeSurvivesWithARealSubscriber(t *testing.T) {
	cfg := testForwarderConfig()
	cfg.CascadeIdleTTL = 30 * time.Millisecond
	f := NewForwarder("s1", cfg, zap.NewNop())
	defer f.Close()

	torn := make(chan struct{}, 1)
	sess := newTestSession(t, "pull-sess", "s1", RolePublish, f.Inbox())
	sess.Cascade = &CascadeDescriptor{Direction: CascadePull, PeerURL: "http://peer/whep/s1", OnTeardown: func() { torn <- struct{}{} }}
	f.AttachPublisher(sess, []Track{{SSRC: 1, Kind: KindVideo, Codec: CodecVP8}})

	viewer := newTestSession(t, "viewer-sess", "s1", RoleSubscribe, f.Inbox())
	f.AttachSubscriber(viewer)

	select {
	case <-torn:
		t.Fatal("cascade pull should not tear down while a real subscriber is attached")
	case <-time.After(150 * time.Millisecond):
	}

	assert.Equal(t, []string{"pull-sess"}, []string{sess.ID})
}
