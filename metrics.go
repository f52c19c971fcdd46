package go_loco

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines the interface for collecting LOCO client metrics.
// This interface allows applications to plug in custom metrics implementations
// (e.g., Prometheus, StatsD, custom logging) for production monitoring.
//
// All methods are safe for concurrent use and should be non-blocking.
type MetricsCollector interface {
	// IncrementPacketSent increments the count of packets sent by command.
	IncrementPacketSent(command string)

	// IncrementPacketReceived increments the count of packets received by
	// command. Unsolicited server pushes are counted here too.
	IncrementPacketReceived(command string)

	// IncrementError increments the error counter by error category
	// (e.g., "transport", "handshake", "status").
	IncrementError(errorType string)

	// RecordStageLatency records how long a session stage took.
	RecordStageLatency(stage SessionState, duration time.Duration)

	// SetConnectionState updates the current connection state
	// ("idle", "connected", "authenticated", "failed", "closed").
	SetConnectionState(state string)

	// AddBytesSent adds to the total bytes sent counter.
	AddBytesSent(bytes uint64)

	// AddBytesReceived adds to the total bytes received counter.
	AddBytesReceived(bytes uint64)
}

// InMemoryMetrics provides a simple in-memory implementation of
// MetricsCollector. Suitable for development, testing, and applications that
// want basic metrics without external dependencies.
type InMemoryMetrics struct {
	countersMu      sync.RWMutex
	packetsSent     map[string]uint64
	packetsReceived map[string]uint64
	errorsByType    map[string]uint64

	latencyMu      sync.RWMutex
	latencyByStage map[SessionState]*latencyStats

	connectionState atomic.Value // stores string

	bytesSent     uint64
	bytesReceived uint64
}

// latencyStats tracks latency statistics for one stage.
type latencyStats struct {
	count      uint64
	totalNanos uint64
	minNanos   uint64
	maxNanos   uint64
}

// NewInMemoryMetrics creates a new in-memory metrics collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	m := &InMemoryMetrics{
		packetsSent:     make(map[string]uint64),
		packetsReceived: make(map[string]uint64),
		errorsByType:    make(map[string]uint64),
		latencyByStage:  make(map[SessionState]*latencyStats),
	}
	m.connectionState.Store("idle")
	return m
}

// IncrementPacketSent increments the sent packet counter for the command.
func (m *InMemoryMetrics) IncrementPacketSent(command string) {
	m.countersMu.Lock()
	m.packetsSent[command]++
	m.countersMu.Unlock()
}

// IncrementPacketReceived increments the received packet counter for the command.
func (m *InMemoryMetrics) IncrementPacketReceived(command string) {
	m.countersMu.Lock()
	m.packetsReceived[command]++
	m.countersMu.Unlock()
}

// IncrementError increments the error counter for the given error category.
func (m *InMemoryMetrics) IncrementError(errorType string) {
	m.countersMu.Lock()
	m.errorsByType[errorType]++
	m.countersMu.Unlock()
}

// RecordStageLatency records the latency for a session stage.
func (m *InMemoryMetrics) RecordStageLatency(stage SessionState, duration time.Duration) {
	nanos := uint64(duration.Nanoseconds())

	m.latencyMu.Lock()
	defer m.latencyMu.Unlock()

	stats := m.latencyByStage[stage]
	if stats == nil {
		stats = &latencyStats{minNanos: nanos, maxNanos: nanos}
		m.latencyByStage[stage] = stats
	}

	stats.count++
	stats.totalNanos += nanos
	if nanos < stats.minNanos {
		stats.minNanos = nanos
	}
	if nanos > stats.maxNanos {
		stats.maxNanos = nanos
	}
}

// SetConnectionState updates the connection state.
func (m *InMemoryMetrics) SetConnectionState(state string) {
	m.connectionState.Store(state)
}

// AddBytesSent adds to the total bytes sent.
func (m *InMemoryMetrics) AddBytesSent(bytes uint64) {
	atomic.AddUint64(&m.bytesSent, bytes)
}

// AddBytesReceived adds to the total bytes received.
func (m *InMemoryMetrics) AddBytesReceived(bytes uint64) {
	atomic.AddUint64(&m.bytesReceived, bytes)
}

// Getter methods for programmatic access to metrics

// PacketsSent returns the total count of sent packets for a command.
func (m *InMemoryMetrics) PacketsSent(command string) uint64 {
	m.countersMu.RLock()
	defer m.countersMu.RUnlock()
	return m.packetsSent[command]
}

// PacketsReceived returns the total count of received packets for a command.
func (m *InMemoryMetrics) PacketsReceived(command string) uint64 {
	m.countersMu.RLock()
	defer m.countersMu.RUnlock()
	return m.packetsReceived[command]
}

// Errors returns the total count of errors for a category.
func (m *InMemoryMetrics) Errors(errorType string) uint64 {
	m.countersMu.RLock()
	defer m.countersMu.RUnlock()
	return m.errorsByType[errorType]
}

// AvgStageLatency returns the average latency for a stage.
// Returns 0 if no measurements have been recorded.
func (m *InMemoryMetrics) AvgStageLatency(stage SessionState) time.Duration {
	m.latencyMu.RLock()
	defer m.latencyMu.RUnlock()

	stats := m.latencyByStage[stage]
	if stats == nil || stats.count == 0 {
		return 0
	}
	return time.Duration(stats.totalNanos / stats.count)
}

// ConnectionState returns the current connection state.
func (m *InMemoryMetrics) ConnectionState() string {
	return m.connectionState.Load().(string)
}

// BytesSent returns the total bytes sent.
func (m *InMemoryMetrics) BytesSent() uint64 {
	return atomic.LoadUint64(&m.bytesSent)
}

// BytesReceived returns the total bytes received.
func (m *InMemoryMetrics) BytesReceived() uint64 {
	return atomic.LoadUint64(&m.bytesReceived)
}

// Reset clears all metrics. Useful for testing.
func (m *InMemoryMetrics) Reset() {
	m.countersMu.Lock()
	m.packetsSent = make(map[string]uint64)
	m.packetsReceived = make(map[string]uint64)
	m.errorsByType = make(map[string]uint64)
	m.countersMu.Unlock()

	m.latencyMu.Lock()
	m.latencyByStage = make(map[SessionState]*latencyStats)
	m.latencyMu.Unlock()

	m.connectionState.Store("idle")
	atomic.StoreUint64(&m.bytesSent, 0)
	atomic.StoreUint64(&m.bytesReceived, 0)
}
