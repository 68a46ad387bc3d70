// Package metrics exposes the Core's counters as plain-text, Prometheus
// text-format output. No example
// repo in the pack imports a Prometheus client as a real dependency (only
// go.mod manifests reference one, never a complete teacher-style repo), so
// this stays on the standard library rather than importing an ungrounded
// dependency; see DESIGN.md.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Registry holds a fixed, pre-declared set of monotonic counters.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*uint64
}

// NewRegistry creates a metrics registry with the Core's standard counters
// pre-declared so /metrics always reports a stable set of names.
func NewRegistry() *Registry {
	r := &Registry{counters: make(map[string]*uint64)}
	for _, name := range []string{
		// Stable names per spec.md §6: stream/publish/subscribe/cascade.
		"stream",
		"publish",
		"subscribe",
		"cascade",
		// Domain-stack additions beyond the spec's required set.
		"live777_streams_closed_total",
		"live777_cascade_loop_rejected_total",
		"live777_nack_retransmits_total",
		"live777_pli_requests_total",
	} {
		var v uint64
		r.counters[name] = &v
	}
	return r
}

// Inc increments a named counter by delta. Unknown names are registered
// lazily so ad-hoc counters (e.g. per-error-code) still work.
func (r *Registry) Inc(name string, delta uint64) {
	r.mu.RLock()
	ctr, ok := r.counters[name]
	r.mu.RUnlock()
	if !ok {
		r.mu.Lock()
		ctr, ok = r.counters[name]
		if !ok {
			var v uint64
			ctr = &v
			r.counters[name] = ctr
		}
		r.mu.Unlock()
	}
	atomic.AddUint64(ctr, delta)
}

// Render produces Prometheus text-exposition-format output for all counters.
func (r *Registry) Render() string {
	r.mu.RLock()
	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		r.mu.RLock()
		ctr := r.counters[name]
		r.mu.RUnlock()
		fmt.Fprintf(&b, "# TYPE %s counter\n%s %d\n", name, name, atomic.LoadUint64(ctr))
	}
	return b.String()
}
