package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks order placement, signal generation and exchange usage.
type SystemMetrics struct {
	mu sync.RWMutex

	// Latency histograms
	APILatency    *LatencyHistogram
	OrderLatency  *LatencyHistogram // full placement, request to exchange ack
	SignalLatency *LatencyHistogram // candle fetch plus evaluation
	DBLatency     *LatencyHistogram

	// Counters
	apiRequests      uint64
	apiErrors        uint64
	ordersAccepted   uint64
	ordersRejected   uint64
	signalsGenerated uint64
	errorsCount      uint64

	rejectionsByKind map[string]uint64
	rateLimitUsage   func() (used int, limit int, percentage float64)

	startedAt time.Time
}

// LatencyHistogram tracks latency samples with sliding window.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool         // Whether samples have changed since last Stats()
	cachedStats LatencyStats // Cached computed stats
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		APILatency:       NewLatencyHistogram(1000),
		OrderLatency:     NewLatencyHistogram(1000),
		SignalLatency:    NewLatencyHistogram(1000),
		DBLatency:        NewLatencyHistogram(1000),
		rejectionsByKind: make(map[string]uint64),
		startedAt:        time.Now(),
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		// Shift window: remove oldest
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true // Mark as dirty for lazy recomputation
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99.
// Uses lazy computation - only recomputes when samples have changed.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Return cached stats if samples haven't changed
	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	// Compute new stats
	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	min, max := sorted[0], sorted[n-1]
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   min,
		Max:   max,
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// IncrementAPI counts one served HTTP request.
func (m *SystemMetrics) IncrementAPI() {
	atomic.AddUint64(&m.apiRequests, 1)
}

// IncrementAPIErrors counts one HTTP response with status >= 400.
func (m *SystemMetrics) IncrementAPIErrors() {
	atomic.AddUint64(&m.apiErrors, 1)
}

// IncrementAccepted counts an order the exchange accepted.
func (m *SystemMetrics) IncrementAccepted() {
	atomic.AddUint64(&m.ordersAccepted, 1)
}

// IncrementRejected counts a rejected order under its error kind.
func (m *SystemMetrics) IncrementRejected(kind string) {
	atomic.AddUint64(&m.ordersRejected, 1)
	if kind == "" {
		return
	}
	m.mu.Lock()
	m.rejectionsByKind[kind]++
	m.mu.Unlock()
}

// IncrementSignals increments generated signals counter.
func (m *SystemMetrics) IncrementSignals() {
	atomic.AddUint64(&m.signalsGenerated, 1)
}

// IncrementErrors increments error counter.
func (m *SystemMetrics) IncrementErrors() {
	atomic.AddUint64(&m.errorsCount, 1)
}

// SetRateLimitSource registers where exchange quota usage is read from.
func (m *SystemMetrics) SetRateLimitSource(fn func() (used int, limit int, percentage float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitUsage = fn
}

// RateLimitUsage reports exchange quota consumption.
type RateLimitUsage struct {
	Used       int     `json:"used"`
	Limit      int     `json:"limit"`
	Percentage float64 `json:"percentage"`
}

// MetricsSnapshot is a point-in-time view of SystemMetrics.
type MetricsSnapshot struct {
	APILatency       LatencyStats      `json:"api_latency"`
	APIRequests      uint64            `json:"api_requests"`
	APIErrors        uint64            `json:"api_errors"`
	OrderLatency     LatencyStats      `json:"order_latency"`
	SignalLatency    LatencyStats      `json:"signal_latency"`
	DBLatency        LatencyStats      `json:"db_latency"`
	OrdersAccepted   uint64            `json:"orders_accepted"`
	OrdersRejected   uint64            `json:"orders_rejected"`
	RejectionsByKind map[string]uint64 `json:"rejections_by_kind"`
	SignalsGenerated uint64            `json:"signals_generated"`
	ErrorsCount      uint64            `json:"errors_count"`
	ExchangeQuota    *RateLimitUsage   `json:"exchange_quota,omitempty"`
	GoroutineCount   int               `json:"goroutine_count"`
	HeapAlloc        uint64            `json:"heap_alloc_bytes"`
	UptimeSeconds    float64           `json:"uptime_seconds"`
	Timestamp        time.Time         `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.RLock()
	byKind := make(map[string]uint64, len(m.rejectionsByKind))
	for k, v := range m.rejectionsByKind {
		byKind[k] = v
	}
	quotaFn := m.rateLimitUsage
	m.mu.RUnlock()

	var quota *RateLimitUsage
	if quotaFn != nil {
		used, limit, pct := quotaFn()
		quota = &RateLimitUsage{Used: used, Limit: limit, Percentage: pct}
	}

	return MetricsSnapshot{
		APILatency:       m.APILatency.Stats(),
		APIRequests:      atomic.LoadUint64(&m.apiRequests),
		APIErrors:        atomic.LoadUint64(&m.apiErrors),
		OrderLatency:     m.OrderLatency.Stats(),
		SignalLatency:    m.SignalLatency.Stats(),
		DBLatency:        m.DBLatency.Stats(),
		OrdersAccepted:   atomic.LoadUint64(&m.ordersAccepted),
		OrdersRejected:   atomic.LoadUint64(&m.ordersRejected),
		RejectionsByKind: byKind,
		SignalsGenerated: atomic.LoadUint64(&m.signalsGenerated),
		ErrorsCount:      atomic.LoadUint64(&m.errorsCount),
		ExchangeQuota:    quota,
		GoroutineCount:   runtime.NumGoroutine(),
		HeapAlloc:        memStats.HeapAlloc,
		UptimeSeconds:    time.Since(m.startedAt).Seconds(),
		Timestamp:        time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: h,
	}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
