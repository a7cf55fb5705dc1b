package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "strong_motion"

// Metrics holds the Prometheus counters, histograms, and gauges for the ingest pipeline.
type Metrics struct {
	FilesConsumed   prometheus.Counter
	GroupsProduced  prometheus.Counter
	GroupsDropped   prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Decode metrics.
	RecordsDecoded *prometheus.CounterVec   // labels: format
	DecodeErrors   *prometheus.CounterVec   // labels: kind
	DecodeWarnings *prometheus.CounterVec   // labels: code
	DecodeDuration *prometheus.HistogramVec // labels: format
	DecodeCache    *prometheus.CounterVec   // labels: result={hit,miss}

	// Grouping metrics.
	DuplicatesDropped prometheus.Counter
	UngroupedRecords  prometheus.Counter

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewUnregisteredMetrics creates Metrics that are not registered anywhere, for
// one-shot commands that never serve /metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates Metrics with no registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_consumed_total",
			Help:      "Total file references read from the source topic.",
		}),
		GroupsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_produced_total",
			Help:      "Total recording groups written to the sink topic.",
		}),
		GroupsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_dropped_total",
			Help:      "Recording groups that could not be serialized and were skipped.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		RecordsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decoded_total",
			Help:      "Channel records decoded, by source format.",
		}, []string{"format"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Files that failed to decode, by error kind.",
		}, []string{"kind"}),
		DecodeWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_warnings_total",
			Help:      "Recoverable decode and grouping diagnostics, by code.",
		}, []string{"code"}),
		DecodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_duration_seconds",
			Help:      "Time to decode one file, by detected format.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"format"}),
		DecodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_cache_total",
			Help:      "Decoded-file cache lookups by result.",
		}, []string{"result"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Channel records dropped as exact duplicates during grouping.",
		}),
		UngroupedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ungrouped_records_total",
			Help:      "Channel records left in single-record groups.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of file references per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-decode-group-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FilesConsumed,
		m.GroupsProduced,
		m.GroupsDropped,
		m.PipelineRunning,
		m.RecordsDecoded,
		m.DecodeErrors,
		m.DecodeWarnings,
		m.DecodeDuration,
		m.DecodeCache,
		m.DuplicatesDropped,
		m.UngroupedRecords,
		m.BatchSize,
		m.BatchProcessingDuration,
	}
}
