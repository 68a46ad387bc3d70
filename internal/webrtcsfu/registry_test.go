package webrtcsfu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testForwarderConfig() ForwarderConfig {
	return ForwarderConfig{
		KeyframeRequestInterval: time.Second,
		NackUpstreamInterval:    20 * time.Millisecond,
		CascadeIdleTTL:          time.Second,
	}
}

func TestRegistryCreateFailsOnDuplicate(t *testing.T) {
	r := NewRegistry(time.Hour, testForwarderConfig(), zap.NewNop())
	defer r.Shutdown()

	_, alreadyExists := r.Create("s1")
	assert.False(t, alreadyExists)

	_, alreadyExists = r.Create("s1")
	assert.True(t, alreadyExists)
}

func TestRegistryGetOrCreateIsIdempotent(t *testing.T) {
	r := NewRegistry(time.Hour, testForwarderConfig(), zap.NewNop())
	defer r.Shutdown()

	f1, created1 := r.GetOrCreate("s1")
	f2, created2 := r.GetOrCreate("s1")

	assert.True(t, created1)
	assert.False(t, created2)
	assert.Same(t, f1, f2)
}

func TestRegistryGetMissingStream(t *testing.T) {
	r := NewRegistry(time.Hour, testForwarderConfig(), zap.NewNop())
	defer r.Shutdown()

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryDeleteIsIdempotent(t *testing.T) {
	r := NewRegistry(time.Hour, testForwarderConfig(), zap.NewNop())
	defer r.Shutdown()

	r.Create("s1")
	assert.True(t, r.Delete("s1"))
	assert.False(t, r.Delete("s1"))

	_, ok := r.Get("s1")
	assert.False(t, ok)
}

func TestRegistryListReturnsEveryStream(t *testing.T) {
	r := NewRegistry(time.Hour, testForwarderConfig(), zap.NewNop())
	defer r.Shutdown()

	r.Create("s1")
	r.Create("s2")

	views := r.List()
	ids := map[string]bool{}
	for _, v := range views {
		ids[v.ID] = true
	}
	assert.True(t, ids["s1"])
	assert.True(t, ids["s2"])
}

func TestRegistryRecreateAfterDeleteGetsFreshCreatedAt(t *testing.T) {
	r := NewRegistry(time.Hour, testForwarderConfig(), zap.NewNop())
	defer r.Shutdown()

	f1, _ := r.Create("s1")
	first := f1.CreatedAt
	time.Sleep(2 * time.Millisecond)

	require.True(t, r.Delete("s1"))
	f2, alreadyExists := r.Create("s1")
	require.False(t, alreadyExists)

	assert.True(t, f2.CreatedAt.After(first))
}

func TestRegistryReapsIdleStreams(t *testing.T) {
	r := NewRegistry(20*time.Millisecond, testForwarderConfig(), zap.NewNop())
	defer r.Shutdown()

	r.Create("idle-stream")

	assert.Eventually(t, func() bool {
		_, ok := r.Get("idle-stream")
		return !ok
	}, time.Second, 5*time.Millisecond, "idle stream should be reaped")
}

func TestRegistryTracksOnMissingStreamReturnsNil(t *testing.T) {
	r := NewRegistry(time.Hour, testForwarderConfig(), zap.NewNop())
	defer r.Shutdown()

	assert.Nil(t, r.Tracks("missing"))
}
