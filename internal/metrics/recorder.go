package metrics

import (
	"maps"
	"sync"
	"time"

	m "github.com/cschleiden/go-orchestrations/backend/metrics"
)

// Recorder is an in-process metrics client which keeps counters and gauges in memory. The host exposes a
// snapshot of it, tests use it to assert on emitted metrics.
type Recorder struct {
	mu       *sync.Mutex
	tags     m.Tags
	counters map[string]int64
	gauges   map[string]int64
	timings  map[string]time.Duration
}

var _ m.Client = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{
		mu:       &sync.Mutex{},
		tags:     m.Tags{},
		counters: map[string]int64{},
		gauges:   map[string]int64{},
		timings:  map[string]time.Duration{},
	}
}

func (r *Recorder) Counter(name string, tags m.Tags, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[name] += value
}

func (r *Recorder) Distribution(name string, tags m.Tags, value float64) {
}

func (r *Recorder) Gauge(name string, tags m.Tags, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gauges[name] = value
}

func (r *Recorder) Timing(name string, tags m.Tags, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.timings[name] += duration
}

// WithTags returns a client sharing the recorded values. Tags are not part of the recorded keys.
func (r *Recorder) WithTags(tags m.Tags) m.Client {
	nt := maps.Clone(r.tags)
	maps.Copy(nt, tags)

	return &Recorder{
		mu:       r.mu,
		tags:     nt,
		counters: r.counters,
		gauges:   r.gauges,
		timings:  r.timings,
	}
}

func (r *Recorder) CounterValue(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.counters[name]
}

func (r *Recorder) GaugeValue(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.gauges[name]
}

// Snapshot returns a copy of all counters and gauges.
func (r *Recorder) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := maps.Clone(r.counters)
	maps.Copy(s, r.gauges)
	return s
}
