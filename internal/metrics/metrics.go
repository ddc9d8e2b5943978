// Package metrics exposes Prometheus collectors for pipeline activity.
// The Collector satisfies the pipeline's Recorder interface, so run and
// step outcomes flow into /metrics without the pipeline importing
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the converter's Prometheus instruments.
type Collector struct {
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	activeRuns   prometheus.Gauge
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	issuesTotal  *prometheus.CounterVec
	uploadBytes  prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tss",
			Name:      "runs_total",
			Help:      "Conversion runs finished, by terminal status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tss",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full conversion run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tss",
			Name:      "active_runs",
			Help:      "Conversion runs currently executing.",
		}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tss",
			Name:      "steps_total",
			Help:      "Pipeline steps finished, by step and terminal status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tss",
			Name:      "step_duration_seconds",
			Help:      "Wall time of one pipeline step.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"step"}),
		issuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tss",
			Name:      "quality_issues_total",
			Help:      "Quality issues recorded during conversion, by severity.",
		}, []string{"severity"}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tss",
			Name:      "upload_bytes",
			Help:      "Size of uploaded workbooks.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.runsTotal,
			c.runDuration,
			c.activeRuns,
			c.stepsTotal,
			c.stepDuration,
			c.issuesTotal,
			c.uploadBytes,
		)
	}
	return c
}

// RunStarted marks a run active.
func (c *Collector) RunStarted() {
	c.activeRuns.Inc()
}

// RunFinished records a terminal run status and its duration.
func (c *Collector) RunFinished(status string, duration time.Duration) {
	c.activeRuns.Dec()
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(duration.Seconds())
}

// StepObserved records one finished step.
func (c *Collector) StepObserved(stepID, status string, duration time.Duration) {
	c.stepsTotal.WithLabelValues(stepID, status).Inc()
	c.stepDuration.WithLabelValues(stepID).Observe(duration.Seconds())
}

// IssueRecorded counts one quality issue.
func (c *Collector) IssueRecorded(severity string) {
	c.issuesTotal.WithLabelValues(severity).Inc()
}

// UploadReceived records the size of an accepted upload.
func (c *Collector) UploadReceived(sizeBytes int64) {
	c.uploadBytes.Observe(float64(sizeBytes))
}
