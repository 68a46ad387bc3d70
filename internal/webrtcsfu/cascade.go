// Package webrtcsfu: cascade controller. A cascade bridges
// this node's Forwarder to another node's Forwarder by acting as a WHIP or
// WHEP client against it. Grounded on the webinar Zego bridge
// concept (internal/zego, an outbound third-party media relay) generalized
// to a Live777-to-Live777 WHIP/WHEP client, and on Eson-Jia-webrtc's
// offer/answer exchange run here in the client role rather than the
// server role.
package webrtcsfu

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// NodeHeader carries the comma-separated chain of node ids this cascade
// request has already passed through, oldest first, so a peer anywhere in
// the chain can refuse the loop with 508. A request from an origin node
// that has never cascaded carries just that node's own id.
const NodeHeader = "X-Live777-Node"

// ParseMarkerChain splits a NodeHeader value into the node ids it names.
func ParseMarkerChain(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// cascadeState tracks one active cascade link owned by a Forwarder.
type cascadeState struct {
	direction CascadeDirection
	peerURL   string
	cancel    func()
}

// CascadeClient performs the outbound half of WHIP/WHEP cascade requests.
type CascadeClient struct {
	httpClient *http.Client
	nodeID     string
	log        *zap.Logger
}

// NewCascadeClient creates a cascade client identified by nodeID (used as
// this node's loop-prevention marker).
func NewCascadeClient(nodeID string, log *zap.Logger) *CascadeClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &CascadeClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		nodeID:     nodeID,
		log:        log,
	}
}

// ErrLoopDetected is returned when a cascade peer's request already carries
// this node's own marker.
var ErrLoopDetected = fmt.Errorf("cascade loop detected")

// SeenOwnMarker reports whether an inbound cascade request's marker chain
// already contains this node's id anywhere in it, meaning accepting it
// would close a loop back through this node — whether that loop is a
// single node cascading to itself or a cycle spanning several nodes.
func (c *CascadeClient) SeenOwnMarker(header string) bool {
	for _, id := range ParseMarkerChain(header) {
		if id == c.nodeID {
			return true
		}
	}
	return false
}

// extendChain appends this node's id to an inbound marker chain (e.g. the
// chain recorded when a remote node cascaded into the stream this outbound
// request is now cascading out of), so a loop through any node visited so
// far is still caught, not just a dial back to the immediate origin.
func (c *CascadeClient) extendChain(inbound []string) string {
	return strings.Join(append(append([]string(nil), inbound...), c.nodeID), ",")
}

// Pull performs cascade-pull: this node becomes a WHEP client of peerURL and
// the received media is injected into the local stream as if published locally.
// inboundChain is the marker chain this stream already carries, if any
// (nil for a stream with no known cascade history).
func (c *CascadeClient) Pull(ctx context.Context, peerURL, authToken string, offer webrtc.SessionDescription, inboundChain []string) (webrtc.SessionDescription, string, error) {
	return c.exchange(ctx, peerURL, authToken, offer, c.extendChain(inboundChain))
}

// Push performs cascade-push: this node becomes a WHIP client of peerURL and
// re-publishes the local publisher's media remotely. inboundChain is the
// marker chain this stream already carries, if any.
func (c *CascadeClient) Push(ctx context.Context, peerURL, authToken string, offer webrtc.SessionDescription, inboundChain []string) (webrtc.SessionDescription, string, error) {
	return c.exchange(ctx, peerURL, authToken, offer, c.extendChain(inboundChain))
}

// exchange POSTs an SDP offer to a remote WHIP/WHEP endpoint, tagging the
// request with the accumulated loop-prevention marker chain, and returns
// the parsed answer plus the session URL from the Location header.
func (c *CascadeClient) exchange(ctx context.Context, url, authToken string, offer webrtc.SessionDescription, chainHeader string) (webrtc.SessionDescription, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(offer.SDP))
	if err != nil {
		return webrtc.SessionDescription{}, "", fmt.Errorf("build cascade request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	req.Header.Set(NodeHeader, chainHeader)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return webrtc.SessionDescription{}, "", fmt.Errorf("cascade request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusLoopDetected {
		return webrtc.SessionDescription{}, "", ErrLoopDetected
	}
	if resp.StatusCode != http.StatusCreated {
		return webrtc.SessionDescription{}, "", fmt.Errorf("cascade peer returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return webrtc.SessionDescription{}, "", fmt.Errorf("read cascade answer: %w", err)
	}

	sessionURL := resp.Header.Get("Location")
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: string(body)}
	return answer, sessionURL, nil
}

// Teardown sends the DELETE that closes a cascade session on the remote peer.
func (c *CascadeClient) Teardown(ctx context.Context, sessionURL, authToken string) error {
	if sessionURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, sessionURL, nil)
	if err != nil {
		return err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
