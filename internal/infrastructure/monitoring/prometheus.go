package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// PrometheusHandler serves the gateway's counters in Prometheus text
// exposition format. Mount it at "/metrics".
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(m.metrics.StartTime).Seconds()

		lines := []struct {
			name string
			help string
			typ  string
			val  interface{}
		}{
			{"gateway_assistant_dispatches_total", "Total assistant dispatch executions", "counter", atomic.LoadUint64(&m.metrics.AssistantDispatchesTotal)},
			{"gateway_assistant_dispatches_success_total", "Total successful assistant dispatches", "counter", atomic.LoadUint64(&m.metrics.AssistantDispatchesSuccess)},
			{"gateway_assistant_dispatches_failed_total", "Total failed assistant dispatches", "counter", atomic.LoadUint64(&m.metrics.AssistantDispatchesFailed)},

			{"gateway_llm_calls_total", "Total LLM calls made", "counter", atomic.LoadUint64(&m.metrics.LLMCallsTotal)},
			{"gateway_llm_tokens_used_total", "Total tokens consumed", "counter", atomic.LoadUint64(&m.metrics.LLMTokensUsed)},

			{"gateway_errors_total", "Total errors encountered", "counter", atomic.LoadUint64(&m.metrics.ErrorsTotal)},

			{"gateway_active_connections", "Number of active websocket connections", "gauge", atomic.LoadInt64(&m.metrics.ActiveConnections)},
			{"gateway_uptime_seconds", "Process uptime in seconds", "gauge", uptime},

			{"gateway_memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc},
			{"gateway_memory_sys_bytes", "Total memory obtained from OS", "gauge", memStats.Sys},
			{"gateway_goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine()},
			{"gateway_gc_pause_total_ns", "Total GC pause time in nanoseconds", "counter", memStats.PauseTotalNs},
			{"gateway_gc_cycles_total", "Total number of completed GC cycles", "counter", memStats.NumGC},
		}

		for _, l := range lines {
			fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.typ)
			switch v := l.val.(type) {
			case uint64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case float64:
				fmt.Fprintf(w, "%s %f\n", l.name, v)
			case uint32:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			}
			fmt.Fprintln(w)
		}

		dispatchCount := atomic.LoadUint64(&m.metrics.DispatchLatencyCount)
		if dispatchCount > 0 {
			avgMs := float64(atomic.LoadUint64(&m.metrics.DispatchLatencySum)) / float64(dispatchCount) / 1e6
			fmt.Fprintf(w, "# HELP gateway_dispatch_latency_avg_ms Average dispatch latency in milliseconds\n")
			fmt.Fprintf(w, "# TYPE gateway_dispatch_latency_avg_ms gauge\n")
			fmt.Fprintf(w, "gateway_dispatch_latency_avg_ms %f\n\n", avgMs)
		}
	})
}
