// internal/utils/metrics.go
package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects generation pipeline metrics
type MetricsCollector struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Counter metric - using atomic operations for thread-safe value updates
type Counter struct {
	name  string
	value int64
}

// Gauge metric - using atomic operations for thread-safe value updates
type Gauge struct {
	name  string
	value int64
}

// Histogram metric (simple implementation tracking count, sum, min, max)
type Histogram struct {
	name  string
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

// NewMetricsCollector creates an empty collector; constructed once at
// bootstrap and passed to the services that record into it
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds a value to a counter metric using atomic operations
func (m *MetricsCollector) AddCounter(name string, value int64) {
	// Fast path for existing counters
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if exists {
		atomic.AddInt64(&counter.value, value)
		return
	}

	m.mu.Lock()
	// Double-check after acquiring write lock
	counter, exists = m.counters[name]
	if !exists {
		counter = &Counter{name: name}
		m.counters[name] = counter
	}
	m.mu.Unlock()

	atomic.AddInt64(&counter.value, value)
}

// SetGauge sets a gauge metric
func (m *MetricsCollector) SetGauge(name string, value int64) {
	m.mu.RLock()
	gauge, exists := m.gauges[name]
	m.mu.RUnlock()

	if exists {
		atomic.StoreInt64(&gauge.value, value)
		return
	}

	m.mu.Lock()
	gauge, exists = m.gauges[name]
	if !exists {
		gauge = &Gauge{name: name}
		m.gauges[name] = gauge
	}
	m.mu.Unlock()

	atomic.StoreInt64(&gauge.value, value)
}

// ObserveDuration records a duration into a histogram in milliseconds
func (m *MetricsCollector) ObserveDuration(name string, d time.Duration) {
	m.Observe(name, d.Milliseconds())
}

// Observe records a value into a histogram
func (m *MetricsCollector) Observe(name string, value int64) {
	m.mu.RLock()
	hist, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		hist, exists = m.histograms[name]
		if !exists {
			hist = &Histogram{name: name, min: value, max: value}
			m.histograms[name] = hist
		}
		m.mu.Unlock()
	}

	hist.mu.Lock()
	hist.count++
	hist.sum += value
	if value < hist.min {
		hist.min = value
	}
	if value > hist.max {
		hist.max = value
	}
	hist.mu.Unlock()
}

// CounterValue returns the current value of a counter (0 when absent)
func (m *MetricsCollector) CounterValue(name string) int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}
	return atomic.LoadInt64(&counter.value)
}

// HistogramStats summarizes one histogram
type HistogramStats struct {
	Count int64 `json:"count"`
	Sum   int64 `json:"sum"`
	Min   int64 `json:"min"`
	Max   int64 `json:"max"`
	Avg   int64 `json:"avg"`
}

// Snapshot returns a point-in-time view of all metrics for the stats endpoint
func (m *MetricsCollector) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, c := range m.counters {
		counters[name] = atomic.LoadInt64(&c.value)
	}

	gauges := make(map[string]int64, len(m.gauges))
	for name, g := range m.gauges {
		gauges[name] = atomic.LoadInt64(&g.value)
	}

	histograms := make(map[string]HistogramStats, len(m.histograms))
	for name, h := range m.histograms {
		h.mu.Lock()
		stats := HistogramStats{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
		if h.count > 0 {
			stats.Avg = h.sum / h.count
		}
		h.mu.Unlock()
		histograms[name] = stats
	}

	return map[string]interface{}{
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}
