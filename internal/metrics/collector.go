// Package metrics exposes Prometheus instrumentation for the conversion
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meshport"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector records stage outcomes, durations and published volume.
type Collector struct {
	stageTotal      *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	publishedBytes  *prometheus.CounterVec
	cleanupWarnings prometheus.Counter
}

// NewCollector registers the pipeline metrics with reg. A nil registerer
// yields unregistered collectors, which is useful in tests and CLI runs.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		stageTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_total",
				Help:      "Pipeline stage executions by outcome",
			},
			[]string{"stage", "outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		publishedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "published_bytes_total",
				Help:      "Bytes uploaded to object storage by content type",
			},
			[]string{"content_type"},
		),
		cleanupWarnings: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_warnings_total",
				Help:      "Staged files that could not be removed",
			},
		),
	}
}

// ObserveStage records one stage execution.
func (c *Collector) ObserveStage(stage string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	c.stageTotal.WithLabelValues(stage, outcome).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObservePublish counts uploaded bytes.
func (c *Collector) ObservePublish(contentType string, bytes int) {
	if c == nil {
		return
	}
	c.publishedBytes.WithLabelValues(contentType).Add(float64(bytes))
}

// ObserveCleanupWarnings counts staged files left behind.
func (c *Collector) ObserveCleanupWarnings(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.cleanupWarnings.Add(float64(n))
}
