// Package metrics collects lightweight in-process counters for the /metrics
// endpoint, with an optional Redis sink for cross-restart analytics.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Sink receives protocol events as they are handled.
type Sink interface {
	RecordMessage(event string)
	RecordHandlerDuration(d time.Duration)
}

const durationSampleCap = 5000

// Tracker is the in-memory sink that backs the HTTP metrics endpoint. Handler
// durations are kept in a bounded ring so percentile queries stay cheap and
// memory stays flat.
type Tracker struct {
	mu        sync.Mutex
	counts    map[string]int64
	durations []float64
	next      int
	filled    bool
}

func NewTracker() *Tracker {
	return &Tracker{
		counts:    make(map[string]int64),
		durations: make([]float64, 0, durationSampleCap),
	}
}

func (t *Tracker) RecordMessage(event string) {
	t.mu.Lock()
	t.counts[event]++
	t.mu.Unlock()
}

func (t *Tracker) RecordHandlerDuration(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	t.mu.Lock()
	if len(t.durations) < durationSampleCap {
		t.durations = append(t.durations, ms)
	} else {
		t.durations[t.next] = ms
		t.next = (t.next + 1) % durationSampleCap
		t.filled = true
	}
	t.mu.Unlock()
}

// Snapshot is the JSON shape served by the metrics endpoint.
type Snapshot struct {
	MessageCountByEvent map[string]int64 `json:"messageCountByEvent"`
	HandleP50Ms         float64          `json:"handleP50Ms"`
	HandleP95Ms         float64          `json:"handleP95Ms"`
	SampleSize          int              `json:"sampleSize"`
	Rooms               int              `json:"rooms"`
	WSClients           int              `json:"wsClients"`
	UptimeSec           int64            `json:"uptimeSec"`
}

// Snapshot copies out the current counters and computes latency percentiles.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	counts := make(map[string]int64, len(t.counts))
	for k, v := range t.counts {
		counts[k] = v
	}
	samples := make([]float64, len(t.durations))
	copy(samples, t.durations)
	t.mu.Unlock()

	sort.Float64s(samples)
	return Snapshot{
		MessageCountByEvent: counts,
		HandleP50Ms:         percentile(samples, 0.50),
		HandleP95Ms:         percentile(samples, 0.95),
		SampleSize:          len(samples),
	}
}

// percentile expects sorted input; nearest-rank.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// Multi fans out to several sinks.
type Multi []Sink

func (m Multi) RecordMessage(event string) {
	for _, s := range m {
		s.RecordMessage(event)
	}
}

func (m Multi) RecordHandlerDuration(d time.Duration) {
	for _, s := range m {
		s.RecordHandlerDuration(d)
	}
}
