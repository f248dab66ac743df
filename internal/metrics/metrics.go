// Package metrics provides Prometheus-based metrics collection for the
// netsweep scan engine: scan and work-unit counters, duration histograms,
// and a live subprocess gauge.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all netsweep metrics
	namespace = "netsweep"

	// Subsystems
	subsystemScan = "scan"
	subsystemUnit = "unit"
)

// EngineMetrics holds all Prometheus metric collectors for the scan engine.
type EngineMetrics struct {
	// Scan-level metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	hostsMerged  *prometheus.CounterVec

	// Unit-level metrics
	unitsTotal      *prometheus.CounterVec
	unitDuration    *prometheus.HistogramVec
	unitErrors      *prometheus.CounterVec
	activeProcesses prometheus.Gauge
	outputLines     prometheus.Counter

	registry *prometheus.Registry
}

// NewEngineMetrics creates a new engine metrics instance with all collectors
// registered on a private registry.
func NewEngineMetrics() *EngineMetrics {
	registry := prometheus.NewRegistry()

	em := &EngineMetrics{registry: registry}

	em.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans performed by target mode and status",
		},
		[]string{"mode", "status"},
	)

	em.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of whole scan invocations in seconds",
			Buckets:   []float64{1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0, 1800.0},
		},
		[]string{"mode"},
	)

	em.hostsMerged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "hosts_total",
			Help:      "Total number of hosts in merged inventories",
		},
		[]string{"mode"},
	)

	em.unitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemUnit,
			Name:      "total",
			Help:      "Total number of work units executed by status",
		},
		[]string{"status"},
	)

	em.unitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemUnit,
			Name:      "duration_seconds",
			Help:      "Duration of individual work units in seconds",
			Buckets:   []float64{0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
		[]string{"status"},
	)

	em.unitErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemUnit,
			Name:      "errors_total",
			Help:      "Total number of per-unit errors by error type",
		},
		[]string{"error_type"},
	)

	em.activeProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemUnit,
			Name:      "active_processes",
			Help:      "Number of currently registered scan subprocesses",
		},
	)

	em.outputLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemUnit,
			Name:      "output_lines_total",
			Help:      "Total number of subprocess output lines streamed",
		},
	)

	registry.MustRegister(
		em.scansTotal,
		em.scanDuration,
		em.hostsMerged,
		em.unitsTotal,
		em.unitDuration,
		em.unitErrors,
		em.activeProcesses,
		em.outputLines,
	)

	// Standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return em
}

// GetRegistry returns the Prometheus registry for HTTP handler exposure.
func (em *EngineMetrics) GetRegistry() *prometheus.Registry {
	return em.registry
}

// IncrementScansTotal increments the total scan counter.
func (em *EngineMetrics) IncrementScansTotal(mode, status string) {
	em.scansTotal.WithLabelValues(mode, status).Inc()
}

// RecordScanDuration records a whole-scan duration.
func (em *EngineMetrics) RecordScanDuration(mode string, duration time.Duration) {
	em.scanDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// AddHostsMerged adds to the merged host counter.
func (em *EngineMetrics) AddHostsMerged(mode string, count int) {
	em.hostsMerged.WithLabelValues(mode).Add(float64(count))
}

// IncrementUnitsTotal increments the work unit counter.
func (em *EngineMetrics) IncrementUnitsTotal(status string) {
	em.unitsTotal.WithLabelValues(status).Inc()
}

// RecordUnitDuration records a work unit duration.
func (em *EngineMetrics) RecordUnitDuration(status string, duration time.Duration) {
	em.unitDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncrementUnitErrors increments the per-unit error counter.
func (em *EngineMetrics) IncrementUnitErrors(errorType string) {
	em.unitErrors.WithLabelValues(errorType).Inc()
}

// SetActiveProcesses sets the live subprocess gauge.
func (em *EngineMetrics) SetActiveProcesses(count int) {
	em.activeProcesses.Set(float64(count))
}

// IncrementOutputLines counts streamed subprocess output lines.
func (em *EngineMetrics) IncrementOutputLines() {
	em.outputLines.Inc()
}

// Global instance for easy access
var (
	globalMetrics *EngineMetrics
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the global engine metrics instance.
func GetGlobalMetrics() *EngineMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewEngineMetrics()
	})
	return globalMetrics
}
