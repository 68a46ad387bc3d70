package metrics

import (
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRegistryPreDeclaresStandardCounters(t *testing.T) {
	r := NewRegistry()
	out := r.Render()
	for _, name := range []string{
		"stream",
		"publish",
		"subscribe",
		"cascade",
		"live777_streams_closed_total",
		"live777_cascade_loop_rejected_total",
		"live777_nack_retransmits_total",
		"live777_pli_requests_total",
	} {
		assert.Contains(t, out, name+" 0")
	}
}

func TestIncAccumulates(t *testing.T) {
	r := NewRegistry()
	r.Inc("stream", 3)
	r.Inc("stream", 2)
	assert.Contains(t, r.Render(), "stream 5")
}

func TestIncRegistersUnknownNamesLazily(t *testing.T) {
	r := NewRegistry()
	r.Inc("live777_custom_total", 1)
	assert.Contains(t, r.Render(), "live777_custom_total 1")
}

func TestRenderIsSortedAndTyped(t *testing.T) {
	r := NewRegistry()
	out := r.Render()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.NotEmpty(t, lines)
	assert.Contains(t, out, "# TYPE stream counter")
	var names []string
	for _, line := range lines {
		if !strings.HasPrefix(line, "#") {
			names = append(names, strings.Fields(line)[0])
		}
	}
	assert.True(t, sort.StringsAreSorted(names), "counters should render in name order")
}

func TestIncIsConcurrencySafe(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Inc("live777_pli_requests_total", 1)
		}()
	}
	wg.Wait()
	assert.Contains(t, r.Render(), "live777_pli_requests_total 100")
}
