package webrtcsfu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSeenOwnMarkerDetectsLoop(t *testing.T) {
	c := NewCascadeClient("node-a", zap.NewNop())
	assert.True(t, c.SeenOwnMarker("node-a"))
}

func TestSeenOwnMarkerIgnoresOtherNodes(t *testing.T) {
	c := NewCascadeClient("node-a", zap.NewNop())
	assert.False(t, c.SeenOwnMarker("node-b"))
	assert.False(t, c.SeenOwnMarker(""))
}

func TestSeenOwnMarkerDetectsSelfAnywhereInChain(t *testing.T) {
	c := NewCascadeClient("node-a", zap.NewNop())
	assert.True(t, c.SeenOwnMarker("node-b,node-a"))
	assert.True(t, c.SeenOwnMarker("node-a,node-b"))
	assert.False(t, c.SeenOwnMarker("node-b,node-c"))
}

// TestMutualCascadePullIsRejected walks spec scenario 6: node A
// cascade-pulls stream x from B, then B cascade-pulls stream x from A. The
// marker chain A's request carries ("A") must be recorded by B and
// extended ("A,B") on B's own outbound pull, so A's loop check rejects it.
func TestMutualCascadePullIsRejected(t *testing.T) {
	nodeA := NewCascadeClient("A", zap.NewNop())
	nodeB := NewCascadeClient("B", zap.NewNop())

	// A dials B with no known chain for stream x yet.
	chainAtoB := nodeA.extendChain(nil)
	assert.Equal(t, "A", chainAtoB)
	assert.False(t, nodeB.SeenOwnMarker(chainAtoB), "B has never seen itself, so it accepts A's pull")

	// B now knows stream x's chain is ["A"]; B's own pull from A extends it.
	chainBtoA := nodeB.extendChain(ParseMarkerChain(chainAtoB))
	assert.Equal(t, "A,B", chainBtoA)
	assert.True(t, nodeA.SeenOwnMarker(chainBtoA), "A must reject the mutual pull that closes the loop back to itself")
}
