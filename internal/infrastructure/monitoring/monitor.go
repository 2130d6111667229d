package monitoring

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Metrics is the gateway's in-process counter set: messages routed
// through the Dispatcher, LLM calls made on the assistant's behalf, and
// the connection/error counts an operator watches during rollout.
type Metrics struct {
	AssistantDispatchesTotal   uint64
	AssistantDispatchesSuccess uint64
	AssistantDispatchesFailed  uint64

	LLMCallsTotal  uint64
	LLMTokensUsed  uint64

	ActiveConnections int64

	DispatchLatencySum   uint64 // nanoseconds
	DispatchLatencyCount uint64

	ErrorsTotal uint64

	StartTime time.Time
}

// Monitor is the gateway's process-metrics collector: the aggregate
// counters an operator dashboard or /metrics scrape wants, as opposed
// to per-operation tracing.
type Monitor struct {
	metrics *Metrics
	logger  *zap.Logger
	mu      sync.RWMutex

	history      []MetricsSnapshot
	historyLimit int
}

// MetricsSnapshot is one point-in-time rollup, kept for a simple
// in-process history without standing up a time-series database.
type MetricsSnapshot struct {
	Timestamp           time.Time
	DispatchesPerSecond float64
	AvgLatencyMs        float64
	ActiveConnections   int64
	MemoryMB            float64
	Goroutines          int
}

func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		metrics: &Metrics{
			StartTime: time.Now(),
		},
		logger:       logger,
		history:      make([]MetricsSnapshot, 0, 100),
		historyLimit: 100,
	}
}

func (m *Monitor) IncDispatchTotal()   { atomic.AddUint64(&m.metrics.AssistantDispatchesTotal, 1) }
func (m *Monitor) IncDispatchSuccess() { atomic.AddUint64(&m.metrics.AssistantDispatchesSuccess, 1) }
func (m *Monitor) IncDispatchFailed()  { atomic.AddUint64(&m.metrics.AssistantDispatchesFailed, 1) }
func (m *Monitor) IncLLMCall()         { atomic.AddUint64(&m.metrics.LLMCallsTotal, 1) }
func (m *Monitor) IncError()           { atomic.AddUint64(&m.metrics.ErrorsTotal, 1) }

func (m *Monitor) AddTokensUsed(n int) {
	atomic.AddUint64(&m.metrics.LLMTokensUsed, uint64(n))
}

func (m *Monitor) SetActiveConnections(n int64) {
	atomic.StoreInt64(&m.metrics.ActiveConnections, n)
}

func (m *Monitor) RecordDispatchLatency(d time.Duration) {
	atomic.AddUint64(&m.metrics.DispatchLatencySum, uint64(d.Nanoseconds()))
	atomic.AddUint64(&m.metrics.DispatchLatencyCount, 1)
}

// GetStats returns the current counters plus runtime vitals as a JSON-ready
// map. The Prometheus exporter does not use it; it loads the counters itself.
func (m *Monitor) GetStats() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.metrics.StartTime)
	dispatchTotal := atomic.LoadUint64(&m.metrics.AssistantDispatchesTotal)

	avgLatency := float64(0)
	if count := atomic.LoadUint64(&m.metrics.DispatchLatencyCount); count > 0 {
		avgLatency = float64(atomic.LoadUint64(&m.metrics.DispatchLatencySum)) / float64(count) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds":               uptime.Seconds(),
		"assistant_dispatches_total":   dispatchTotal,
		"assistant_dispatches_success": atomic.LoadUint64(&m.metrics.AssistantDispatchesSuccess),
		"assistant_dispatches_failed":  atomic.LoadUint64(&m.metrics.AssistantDispatchesFailed),
		"llm_calls_total":              atomic.LoadUint64(&m.metrics.LLMCallsTotal),
		"llm_tokens_used":              atomic.LoadUint64(&m.metrics.LLMTokensUsed),
		"active_connections":           atomic.LoadInt64(&m.metrics.ActiveConnections),
		"errors_total":                 atomic.LoadUint64(&m.metrics.ErrorsTotal),
		"avg_dispatch_latency_ms":      avgLatency,
		"memory_mb":                    float64(memStats.Alloc) / 1024 / 1024,
		"goroutines":                   runtime.NumGoroutine(),
		"dispatches_per_second":        float64(dispatchTotal) / uptime.Seconds(),
	}
}

// Snapshot captures the current stats into the bounded history ring.
func (m *Monitor) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.metrics.StartTime).Seconds()
	dispatchTotal := atomic.LoadUint64(&m.metrics.AssistantDispatchesTotal)

	avgLatency := float64(0)
	if count := atomic.LoadUint64(&m.metrics.DispatchLatencyCount); count > 0 {
		avgLatency = float64(atomic.LoadUint64(&m.metrics.DispatchLatencySum)) / float64(count) / 1e6
	}

	snapshot := MetricsSnapshot{
		Timestamp:           time.Now(),
		DispatchesPerSecond: float64(dispatchTotal) / uptime,
		AvgLatencyMs:        avgLatency,
		ActiveConnections:   atomic.LoadInt64(&m.metrics.ActiveConnections),
		MemoryMB:            float64(memStats.Alloc) / 1024 / 1024,
		Goroutines:          runtime.NumGoroutine(),
	}

	m.mu.Lock()
	m.history = append(m.history, snapshot)
	if len(m.history) > m.historyLimit {
		m.history = m.history[1:]
	}
	m.mu.Unlock()

	return snapshot
}

func (m *Monitor) GetHistory() []MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]MetricsSnapshot, len(m.history))
	copy(result, m.history)
	return result
}

// StartCollector snapshots on a fixed interval until ctx is cancelled.
func (m *Monitor) StartCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Snapshot()
		}
	}
}

// DashboardData bundles the current stats and recent history for a
// single JSON response.
type DashboardData struct {
	Stats   map[string]interface{} `json:"stats"`
	History []MetricsSnapshot      `json:"history"`
}

func (m *Monitor) GetDashboardData() *DashboardData {
	return &DashboardData{
		Stats:   m.GetStats(),
		History: m.GetHistory(),
	}
}
