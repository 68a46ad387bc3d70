package webrtcsfu

import (
	"github.com/pion/webrtc/v4"
)

// fabricLabel is the single DataChannel label the Core negotiates,
// regardless of what a client's offer requested.
const fabricLabel = "live777"

// EnsureDataChannel creates the fabric DataChannel on the peer connection.
// It always creates a new channel and does not check whether the remote
// side already negotiated one. Wiring this into Session is done by the
// caller via Session.SetDataChannel.
func EnsureDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	return pc.CreateDataChannel(fabricLabel, &webrtc.DataChannelInit{Ordered: &ordered})
}

// OnDataChannel wires the remote-initiated-DataChannel callback: whichever
// side offers, only one fabric channel is ever adopted per peer connection.
func OnDataChannel(pc *webrtc.PeerConnection, s *Session) {
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		s.mu.RLock()
		adopted := s.dc != nil
		s.mu.RUnlock()
		if adopted {
			return
		}
		s.SetDataChannel(dc)
	})
}
