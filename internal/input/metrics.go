package input

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks input processing performance.
type Metrics struct {
	// Event counters
	eventsTotal     atomic.Uint64
	swallowedTotal  atomic.Uint64
	echoesDropped   atomic.Uint64
	callbacksFailed atomic.Uint64
	sendsFailed     atomic.Uint64

	// Latency tracking
	mu                sync.RWMutex
	latencies         []time.Duration
	maxLatencySamples int
	latencyIdx        int

	// Peak latency (all time)
	peakLatency atomic.Int64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		latencies:         make([]time.Duration, 1000),
		maxLatencySamples: 1000,
		startTime:         time.Now(),
	}
}

// RecordEvent records one processed system event.
func (m *Metrics) RecordEvent(latency time.Duration, swallowed bool) {
	m.eventsTotal.Add(1)
	if swallowed {
		m.swallowedTotal.Add(1)
	}

	latencyNs := latency.Nanoseconds()
	for {
		current := m.peakLatency.Load()
		if latencyNs <= current {
			break
		}
		if m.peakLatency.CompareAndSwap(current, latencyNs) {
			break
		}
	}

	m.mu.Lock()
	m.latencies[m.latencyIdx] = latency
	m.latencyIdx = (m.latencyIdx + 1) % m.maxLatencySamples
	m.mu.Unlock()
}

// RecordEcho records a synthetic event dropped on input.
func (m *Metrics) RecordEcho() {
	m.echoesDropped.Add(1)
}

// RecordCallbackFailure records a callback that returned an error,
// panicked or could not be queued.
func (m *Metrics) RecordCallbackFailure() {
	m.callbacksFailed.Add(1)
}

// RecordSendFailure records an event the output sink could not accept.
func (m *Metrics) RecordSendFailure() {
	m.sendsFailed.Add(1)
}

// MetricsSnapshot holds a point-in-time view of metrics.
type MetricsSnapshot struct {
	// Counters
	EventsTotal     uint64
	SwallowedTotal  uint64
	EchoesDropped   uint64
	CallbacksFailed uint64
	SendsFailed     uint64

	// Latency stats
	AvgLatency  time.Duration
	MaxLatency  time.Duration
	P99Latency  time.Duration
	PeakLatency time.Duration

	EventsPerSecond float64

	Uptime time.Duration
}

// Snapshot returns a point-in-time view of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	startTime := m.startTime
	m.mu.RUnlock()

	count := m.eventsTotal.Load()
	uptime := time.Since(startTime)

	snap := MetricsSnapshot{
		EventsTotal:     count,
		SwallowedTotal:  m.swallowedTotal.Load(),
		EchoesDropped:   m.echoesDropped.Load(),
		CallbacksFailed: m.callbacksFailed.Load(),
		SendsFailed:     m.sendsFailed.Load(),
		PeakLatency:     time.Duration(m.peakLatency.Load()),
		Uptime:          uptime,
	}
	if uptime > 0 {
		snap.EventsPerSecond = float64(count) / uptime.Seconds()
	}
	snap.AvgLatency, snap.MaxLatency, snap.P99Latency = calculateLatencyStats(latencies)

	return snap
}

// calculateLatencyStats computes average, max, and p99 from a slice of latencies.
func calculateLatencyStats(latencies []time.Duration) (avg, maxLat, p99 time.Duration) {
	valid := make([]time.Duration, 0, len(latencies))
	for _, l := range latencies {
		if l > 0 {
			valid = append(valid, l)
		}
	}

	if len(valid) == 0 {
		return 0, 0, 0
	}

	var sum time.Duration
	for _, l := range valid {
		sum += l
		if l > maxLat {
			maxLat = l
		}
	}
	avg = sum / time.Duration(len(valid))

	sort.Slice(valid, func(i, j int) bool { return valid[i] < valid[j] })
	idx := int(float64(len(valid)) * 0.99)
	if idx >= len(valid) {
		idx = len(valid) - 1
	}
	p99 = valid[idx]

	return avg, maxLat, p99
}

// HealthStatus represents the current health status of input processing.
type HealthStatus struct {
	Healthy          bool
	CallbacksFailed  uint64
	PeakLatency      time.Duration
	LatencyThreshold time.Duration
	Message          string
}

// HealthCheck returns the current health status. The hook goroutine has
// a small budget per event; a peak above latencyThreshold is unhealthy.
func (m *Metrics) HealthCheck(latencyThreshold time.Duration) HealthStatus {
	status := HealthStatus{
		Healthy:          true,
		CallbacksFailed:  m.callbacksFailed.Load(),
		PeakLatency:      time.Duration(m.peakLatency.Load()),
		LatencyThreshold: latencyThreshold,
	}

	switch {
	case status.PeakLatency > latencyThreshold:
		status.Healthy = false
		status.Message = "latency threshold exceeded"
	case status.CallbacksFailed > 0:
		status.Message = "callbacks failed"
	default:
		status.Message = "healthy"
	}

	return status
}
