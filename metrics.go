package qsim

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

/*
Metrics aggregates engine activity. The struct fields are a process-local
snapshot guarded by mu; the prometheus collectors carry the same events for
scraping when the metrics were created with a registerer.
*/
type Metrics struct {
	mu           sync.RWMutex
	WorkerCount  int
	JobCount     int64
	JobFailures  int64
	TotalJobTime time.Duration

	GatesApplied    int64
	Measurements    int64
	DeviceFallbacks int64

	AverageJobLatency time.Duration
	P95JobLatency     time.Duration
	P99JobLatency     time.Duration

	latencies  []time.Duration
	next       int
	windowSize int

	gates        *prometheus.CounterVec
	measurements *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	fallbacks    prometheus.Counter
	jobs         *prometheus.CounterVec
}

/*
NewMetrics creates the collectors and, when reg is non-nil, registers them.
Use one Metrics per registry; contexts share it safely.
*/
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		latencies:  make([]time.Duration, 0, 512),
		windowSize: 512,
		gates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qsim",
			Name:      "gates_applied_total",
			Help:      "Gate applications by backend.",
		}, []string{"backend"}),
		measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qsim",
			Name:      "measurements_total",
			Help:      "Measurements by backend.",
		}, []string{"backend"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qsim",
			Name:      "gate_step_seconds",
			Help:      "Wall time of one gate application including the barrier.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"backend"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qsim",
			Name:      "device_fallbacks_total",
			Help:      "Automatic selections that fell back to the host backend.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qsim",
			Name:      "pool_jobs_total",
			Help:      "Host pool jobs by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.gates, m.measurements, m.stepDuration, m.fallbacks, m.jobs)
	}

	return m
}

func (m *Metrics) recordJobExecution(startTime time.Time, success bool) {
	duration := time.Since(startTime)

	result := "success"
	if !success {
		result = "failure"
	}
	m.jobs.WithLabelValues(result).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalJobTime += duration
	m.JobCount++

	if !success {
		m.JobFailures++
	}

	m.AverageJobLatency = m.TotalJobTime / time.Duration(m.JobCount)

	if len(m.latencies) < m.windowSize {
		m.latencies = append(m.latencies, duration)
	} else {
		m.latencies[m.next] = duration
		m.next = (m.next + 1) % m.windowSize
	}
}

func (m *Metrics) recordGate(backend string, took time.Duration) {
	m.gates.WithLabelValues(backend).Inc()
	m.stepDuration.WithLabelValues(backend).Observe(took.Seconds())

	m.mu.Lock()
	m.GatesApplied++
	m.mu.Unlock()
}

func (m *Metrics) recordMeasurement(backend string) {
	m.measurements.WithLabelValues(backend).Inc()

	m.mu.Lock()
	m.Measurements++
	m.mu.Unlock()
}

func (m *Metrics) recordFallback() {
	m.fallbacks.Inc()

	m.mu.Lock()
	m.DeviceFallbacks++
	m.mu.Unlock()
}

// updateLatencyPercentiles recomputes P95/P99 over the sliding window.
func (m *Metrics) updateLatencyPercentiles() {
	if len(m.latencies) == 0 {
		return
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	p95Index := min(int(float64(len(sorted))*0.95), len(sorted)-1)
	p99Index := min(int(float64(len(sorted))*0.99), len(sorted)-1)

	m.P95JobLatency = sorted[p95Index]
	m.P99JobLatency = sorted[p99Index]
}

// ExportMetrics returns a flat snapshot for logging.
func (m *Metrics) ExportMetrics() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateLatencyPercentiles()

	return map[string]interface{}{
		"worker_count":     m.WorkerCount,
		"jobs":             m.JobCount,
		"job_failures":     m.JobFailures,
		"gates_applied":    m.GatesApplied,
		"measurements":     m.Measurements,
		"device_fallbacks": m.DeviceFallbacks,
		"avg_latency_us":   m.AverageJobLatency.Microseconds(),
		"p95_latency_us":   m.P95JobLatency.Microseconds(),
		"p99_latency_us":   m.P99JobLatency.Microseconds(),
	}
}
