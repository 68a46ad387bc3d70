package webrtcsfu

// nackBufferSize is the number of packets the NACK buffer keeps per track:
// about 500ms of media at 1000pps, or about 10s at a 50pps rate.
const nackBufferSize = 512

// rtpEntry is one slot in a NACK ring buffer.
type rtpEntry struct {
	seq    uint16
	valid  bool
	packet []byte
}

// nackBuffer is a fixed-size ring of recent RTP packets for one publisher
// track, keyed by sequence number modulo the buffer size. Grounded on the
// ring-of-slots design used for packet retransmission buffers in the pack's
// ion-sfu-derived ring buffer; reimplemented here since that package is not
// importable (no go.mod in that example directory).
type nackBuffer struct {
	slots [nackBufferSize]rtpEntry
}

func newNackBuffer() *nackBuffer {
	return &nackBuffer{}
}

// Push stores a copy of packet under seq, overwriting whatever previously
// occupied that slot (the "drop oldest" rule from).
func (b *nackBuffer) Push(seq uint16, packet []byte) {
	slot := &b.slots[int(seq)%nackBufferSize]
	if cap(slot.packet) < len(packet) {
		slot.packet = make([]byte, len(packet))
	} else {
		slot.packet = slot.packet[:len(packet)]
	}
	copy(slot.packet, packet)
	slot.seq = seq
	slot.valid = true
}

// Get returns the buffered packet for seq, and whether it is still present
// (the slot may have been overwritten by a newer packet with the same
// residue, or never populated).
func (b *nackBuffer) Get(seq uint16) ([]byte, bool) {
	slot := &b.slots[int(seq)%nackBufferSize]
	if !slot.valid || slot.seq != seq {
		return nil, false
	}
	return slot.packet, true
}

// Resolve splits a requested sequence-number list into packets served from
// the buffer and the residue that must be forwarded upstream.
func (b *nackBuffer) Resolve(seqs []uint16) (served [][]byte, missing []uint16) {
	for _, seq := range seqs {
		if pkt, ok := b.Get(seq); ok {
			served = append(served, pkt)
		} else {
			missing = append(missing, seq)
		}
	}
	return served, missing
}
