package input

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordEvent(100*time.Microsecond, true)
	m.RecordEvent(300*time.Microsecond, false)
	m.RecordEcho()
	m.RecordCallbackFailure()
	m.RecordSendFailure()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.EventsTotal)
	assert.Equal(t, uint64(1), snap.SwallowedTotal)
	assert.Equal(t, uint64(1), snap.EchoesDropped)
	assert.Equal(t, uint64(1), snap.CallbacksFailed)
	assert.Equal(t, uint64(1), snap.SendsFailed)
	assert.Equal(t, 200*time.Microsecond, snap.AvgLatency)
	assert.Equal(t, 300*time.Microsecond, snap.MaxLatency)
	assert.Equal(t, 300*time.Microsecond, snap.PeakLatency)
}

func TestMetricsRingOverwrites(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 1500; i++ {
		m.RecordEvent(time.Microsecond, false)
	}
	m.RecordEvent(time.Millisecond, false)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1501), snap.EventsTotal)
	assert.Equal(t, time.Millisecond, snap.MaxLatency)
	assert.Equal(t, time.Microsecond, snap.P99Latency)
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		record  func(*Metrics)
		healthy bool
		message string
	}{
		{"idle", func(*Metrics) {}, true, "healthy"},
		{"slow event", func(m *Metrics) { m.RecordEvent(20*time.Millisecond, false) }, false, "latency threshold exceeded"},
		{"failed callback", func(m *Metrics) { m.RecordCallbackFailure() }, true, "callbacks failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics()
			tt.record(m)
			status := m.HealthCheck(10 * time.Millisecond)
			assert.Equal(t, tt.healthy, status.Healthy)
			assert.Equal(t, tt.message, status.Message)
		})
	}
}
