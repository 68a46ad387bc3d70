// Package webrtcsfu: audit writes stream lifecycle transitions to the
// optional PostgreSQL log (pkg/database) and enqueues the same transitions
// onto the optional Redis job queue (pkg/queue) for external collaborators —
// entirely optional, decoupled from the forwarding fast path. Grounded on
// an internal/streams.Repository-style insert-on-event pattern.
package webrtcsfu

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/live777/live777-go/pkg/queue"
)

// AuditSink records stream lifecycle events for audit/notification
// purposes. Every dependency (pool, queue, presence) is optional; a nil one
// silently skips its part of the sink.
type AuditSink struct {
	pool     *pgxpool.Pool
	queue    *queue.Queue
	presence *Presence
	log      *zap.Logger
}

// NewAuditSink creates an audit sink. Any dependency may be nil.
func NewAuditSink(pool *pgxpool.Pool, q *queue.Queue, presence *Presence, log *zap.Logger) *AuditSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditSink{pool: pool, queue: q, presence: presence, log: log}
}

// RecordStreamCreated logs a stream creation event and announces this
// node's presence for streamID.
func (a *AuditSink) RecordStreamCreated(ctx context.Context, streamID string) {
	a.record(ctx, streamID, "created", "")
	if a.queue != nil {
		_ = a.queue.EnqueueStreamEvent(ctx, queue.JobTypeStreamCreated, queue.StreamEventPayload{StreamID: streamID, OccuredAt: time.Now()})
	}
	if a.presence != nil {
		_ = a.presence.Publish(ctx, streamID, true)
	}
}

// RecordStreamClosed logs a stream teardown event with its reason and
// retracts this node's presence announcement for streamID.
func (a *AuditSink) RecordStreamClosed(ctx context.Context, streamID, reason string) {
	a.record(ctx, streamID, "closed", reason)
	if a.queue != nil {
		_ = a.queue.EnqueueStreamEvent(ctx, queue.JobTypeStreamClosed, queue.StreamEventPayload{StreamID: streamID, Reason: reason, OccuredAt: time.Now()})
	}
	if a.presence != nil {
		_ = a.presence.Publish(ctx, streamID, false)
	}
}

// RecordCascadeFailed logs a cascade failure event.
func (a *AuditSink) RecordCascadeFailed(ctx context.Context, streamID, reason string) {
	a.record(ctx, streamID, "cascade_failed", reason)
	if a.queue != nil {
		_ = a.queue.EnqueueStreamEvent(ctx, queue.JobTypeCascadeFailed, queue.StreamEventPayload{StreamID: streamID, Reason: reason, OccuredAt: time.Now()})
	}
}

func (a *AuditSink) record(ctx context.Context, streamID, event, sessionID string) {
	if a.pool == nil {
		return
	}
	_, err := a.pool.Exec(ctx,
		`INSERT INTO stream_events (stream_id, event, session_id) VALUES ($1, $2, NULLIF($3, ''))`,
		streamID, event, sessionID,
	)
	if err != nil {
		a.log.Warn("audit insert failed", zap.String("stream_id", streamID), zap.String("event", event), zap.Error(err))
	}
}
