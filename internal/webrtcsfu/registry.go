// Package webrtcsfu: Registry is the process-wide stream-id -> Forwarder
// map, grounded on a realtime.Hub-style single struct guarding a map of
// call rooms, generalized with an idle-reaper goroutine and
// create-exclusion so two concurrent WHIP requests for a new stream-id
// produce exactly one Forwarder.
package webrtcsfu

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry owns every Forwarder in the process.
type Registry struct {
	cfg ForwarderConfig
	log *zap.Logger

	mu        sync.RWMutex
	forwarders map[string]*Forwarder

	idleTTL time.Duration
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewRegistry creates an empty registry and starts its idle-reaper task.
func NewRegistry(idleTTL time.Duration, cfg ForwarderConfig, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		cfg:        cfg,
		log:        log,
		forwarders: make(map[string]*Forwarder),
		idleTTL:    idleTTL,
		stopCh:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.reapLoop()
	return r
}

// Get returns the Forwarder for streamID, if it exists.
func (r *Registry) Get(streamID string) (*Forwarder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forwarders[streamID]
	return f, ok
}

// GetOrCreate returns the existing Forwarder for streamID, or atomically
// creates one. The `created` return distinguishes the two cases so callers
// can apply auto-create policy before calling this.
func (r *Registry) GetOrCreate(streamID string) (f *Forwarder, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.forwarders[streamID]; ok {
		return existing, false
	}
	f = NewForwarder(streamID, r.cfg, r.log)
	r.forwarders[streamID] = f
	return f, true
}

// Create inserts a new Forwarder for streamID, failing if one already
// exists.
func (r *Registry) Create(streamID string) (f *Forwarder, alreadyExists bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.forwarders[streamID]; ok {
		return existing, true
	}
	f = NewForwarder(streamID, r.cfg, r.log)
	r.forwarders[streamID] = f
	return f, false
}

// Delete force-destroys a stream's Forwarder, tearing down every session.
func (r *Registry) Delete(streamID string) bool {
	r.mu.Lock()
	f, ok := r.forwarders[streamID]
	if ok {
		delete(r.forwarders, streamID)
	}
	r.mu.Unlock()
	if ok {
		f.Close()
	}
	return ok
}

// List returns a snapshot of every stream's view, in no particular order, for the
// GET /api/streams/ admin surface.
func (r *Registry) List() []StreamView {
	r.mu.RLock()
	fs := make([]*Forwarder, 0, len(r.forwarders))
	for _, f := range r.forwarders {
		fs = append(fs, f)
	}
	r.mu.RUnlock()

	views := make([]StreamView, 0, len(fs))
	for _, f := range fs {
		views = append(views, f.View())
	}
	return views
}

// Tracks implements internal/recorder.SFUTap.
func (r *Registry) Tracks(streamID string) []Track {
	f, ok := r.Get(streamID)
	if !ok {
		return nil
	}
	return f.Tracks()
}

// RegisterRecordingSink implements internal/recorder.SFUTap.
func (r *Registry) RegisterRecordingSink(streamID string, sink RecordingSink) {
	if f, ok := r.Get(streamID); ok {
		f.RegisterRecordingSink(sink)
	}
}

// UnregisterRecordingSink implements internal/recorder.SFUTap.
func (r *Registry) UnregisterRecordingSink(streamID string) {
	if f, ok := r.Get(streamID); ok {
		f.UnregisterRecordingSink()
	}
}

func (r *Registry) reapLoop() {
	defer r.wg.Done()
	interval := r.idleTTL / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.reapOnce()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) reapOnce() {
	r.mu.Lock()
	dead := make(map[string]*Forwarder)
	for id, f := range r.forwarders {
		if f.Idle(r.idleTTL) {
			dead[id] = f
			delete(r.forwarders, id)
		}
	}
	r.mu.Unlock()

	// Close (which blocks on the Forwarder's owner goroutine) runs outside
	// the registry lock so a slow teardown never stalls concurrent lookups.
	for id, f := range dead {
		r.log.Info("reaping idle stream", zap.String("stream_id", id))
		f.Close()
	}
}

// Shutdown stops the reaper and tears down every Forwarder in the registry,
// in no particular order (ordered teardown is not required by
// beyond "triggers ordered teardown of every Forwarder", which here means
// each Forwarder's own internal teardown order, not a cross-stream order).
func (r *Registry) Shutdown() {
	close(r.stopCh)
	r.wg.Wait()

	r.mu.Lock()
	fs := r.forwarders
	r.forwarders = make(map[string]*Forwarder)
	r.mu.Unlock()

	for _, f := range fs {
		f.Close()
	}
}
