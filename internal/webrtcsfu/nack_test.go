package webrtcsfu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNackBufferPushGet(t *testing.T) {
	b := newNackBuffer()
	b.Push(100, []byte{1, 2, 3})

	pkt, ok := b.Get(100)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, pkt)
}

func TestNackBufferGetMissingSlot(t *testing.T) {
	b := newNackBuffer()
	_, ok := b.Get(7)
	assert.False(t, ok)
}

func TestNackBufferOverwriteDropsOldestOnCollision(t *testing.T) {
	b := newNackBuffer()
	b.Push(5, []byte{0xAA})
	b.Push(5+nackBufferSize, []byte{0xBB})

	_, ok := b.Get(5)
	assert.False(t, ok, "the older sequence number sharing the slot should be gone")

	pkt, ok := b.Get(5 + nackBufferSize)
	assert.True(t, ok)
	assert.Equal(t, []byte{0xBB}, pkt)
}

func TestNackBufferResolveSplitsServedAndMissing(t *testing.T) {
	b := newNackBuffer()
	b.Push(1, []byte{0x01})
	b.Push(2, []byte{0x02})

	served, missing := b.Resolve([]uint16{1, 2, 3})
	assert.Len(t, served, 2)
	assert.Equal(t, []uint16{3}, missing)
}

func TestNackBufferPushReusesBackingArray(t *testing.T) {
	b := newNackBuffer()
	b.Push(10, []byte{1, 2, 3, 4})
	b.Push(10, []byte{9, 9})

	pkt, ok := b.Get(10)
	assert.True(t, ok)
	assert.Equal(t, []byte{9, 9}, pkt)
}
