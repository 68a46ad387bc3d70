// Package webrtcsfu: presence publishes lightweight "which node has which
// stream" hints over Redis pub/sub, so a cascade controller deciding where
// to pull a stream from can skip asking nodes that don't have it. Entirely
// optional: with no Redis client configured, cascade-pull still works via
// an explicit sourceUrl. Grounded on a realtime.RedisPubSub-style wrapper,
// generalized from per-webinar chat broadcast to stream-presence events.
package webrtcsfu

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const presenceChannel = "live777:presence"

// PresenceEvent announces a stream's publisher appearing or disappearing
// on this node.
type PresenceEvent struct {
	NodeID   string `json:"node_id"`
	StreamID string `json:"stream_id"`
	Present  bool   `json:"present"`
}

// Presence publishes and observes cross-node stream presence over Redis.
type Presence struct {
	client *redis.Client
	nodeID string
	log    *zap.Logger
}

// NewPresence creates a Presence publisher/subscriber. A nil client
// disables it (Publish and Subscribe become no-ops).
func NewPresence(client *redis.Client, nodeID string, log *zap.Logger) *Presence {
	if log == nil {
		log = zap.NewNop()
	}
	return &Presence{client: client, nodeID: nodeID, log: log}
}

// Enabled reports whether a Redis client is configured.
func (p *Presence) Enabled() bool { return p.client != nil }

// Publish announces this node's presence for a stream.
func (p *Presence) Publish(ctx context.Context, streamID string, present bool) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(PresenceEvent{NodeID: p.nodeID, StreamID: streamID, Present: present})
	if err != nil {
		return fmt.Errorf("marshal presence event: %w", err)
	}
	if err := p.client.Publish(ctx, presenceChannel, body).Err(); err != nil {
		return fmt.Errorf("publish presence: %w", err)
	}
	return nil
}

// PresenceTracker consumes a Presence subscription and keeps the
// last-known node for each stream id, so the cascade controller can
// suggest a peer URL before a caller supplies `sourceUrl` explicitly.
// This is a best-effort cache, never authoritative.
type PresenceTracker struct {
	mu    sync.RWMutex
	nodes map[string]string
}

// NewPresenceTracker creates an empty tracker. Call Run to start consuming
// events; Lookup is safe to call before Run observes anything (it just
// reports not-found).
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{nodes: make(map[string]string)}
}

// Run consumes p's subscription until ctx is done, updating the tracker's
// view of which node currently holds each stream's publisher.
func (t *PresenceTracker) Run(ctx context.Context, p *Presence) {
	for evt := range p.Subscribe(ctx) {
		t.mu.Lock()
		if evt.Present {
			t.nodes[evt.StreamID] = evt.NodeID
		} else if t.nodes[evt.StreamID] == evt.NodeID {
			delete(t.nodes, evt.StreamID)
		}
		t.mu.Unlock()
	}
}

// Lookup returns the last node known to hold streamID's publisher.
func (t *PresenceTracker) Lookup(streamID string) (nodeID string, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	nodeID, ok = t.nodes[streamID]
	return
}

// Subscribe streams presence events from every node until ctx is done.
// Malformed payloads are logged and skipped rather than surfaced, since
// this channel is a best-effort optimization hint, not a source of truth.
func (p *Presence) Subscribe(ctx context.Context) <-chan PresenceEvent {
	out := make(chan PresenceEvent, 32)
	if !p.Enabled() {
		close(out)
		return out
	}
	sub := p.client.Subscribe(ctx, presenceChannel)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt PresenceEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					p.log.Warn("invalid presence payload", zap.Error(err))
					continue
				}
				if evt.NodeID == p.nodeID {
					continue
				}
				select {
				case out <- evt:
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
