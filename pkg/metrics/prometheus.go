package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder implements domain.repository.Metrics using Prometheus.
// It owns a private registry so that several recorders can coexist.
type Recorder struct {
	reg          *prometheus.Registry
	runsTotal    *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	issuesTotal  *prometheus.CounterVec
	rows         *prometheus.GaugeVec
	lastRun      *prometheus.GaugeVec
	stageLatency *prometheus.HistogramVec
}

// New creates a recorder on reg, or on a fresh registry when reg is nil.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "risklab_series_runs_total",
				Help: "Series ingestion runs by provider and verdict",
			},
			[]string{"provider", "verdict"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "risklab_errors_total",
				Help: "Pipeline errors by kind",
			},
			[]string{"kind"},
		),
		issuesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "risklab_validation_issues_total",
				Help: "Validation issues by stage and severity",
			},
			[]string{"stage", "severity"},
		),
		rows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "risklab_series_rows",
				Help: "Rows in the latest standardized table of a series",
			},
			[]string{"series_id"},
		),
		lastRun: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "risklab_series_last_run_timestamp_seconds",
				Help: "Unix time of the latest stored run of a series",
			},
			[]string{"series_id"},
		),
		stageLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "risklab_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
	}
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// RecordRun counts a finished series run.
func (r *Recorder) RecordRun(provider, verdict string) {
	r.runsTotal.WithLabelValues(provider, verdict).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordIssue counts one validation issue.
func (r *Recorder) RecordIssue(stage, severity string) {
	r.issuesTotal.WithLabelValues(stage, severity).Inc()
}

// RecordRows sets the row count of a stored series and stamps its run time.
func (r *Recorder) RecordRows(seriesID string, rows int) {
	r.rows.WithLabelValues(seriesID).Set(float64(rows))
	r.lastRun.WithLabelValues(seriesID).Set(float64(time.Now().Unix()))
}

// RecordStage records stage latency in seconds.
func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// WriteTextfile writes the registry in text format for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Push sends the registry to a Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
