package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the pipeline.
type Metrics struct {
	RunsStarted      prometheus.Counter
	RunsCompleted    *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	SubmissionTiers  *prometheus.CounterVec
	PollTicks        prometheus.Counter
	CheckpointWrites *prometheus.CounterVec
}

// New registers all metrics on the default registry. Use NewWith in tests to
// avoid duplicate registration panics.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics on the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "anchorid_runs_started_total",
			Help: "Total number of pipeline runs started",
		}),
		RunsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorid_runs_completed_total",
			Help: "Total number of pipeline runs completed, by outcome",
		}, []string{"outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anchorid_stage_duration_seconds",
			Help:    "Wall-clock duration of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		SubmissionTiers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorid_submission_tier_total",
			Help: "Anchoring submissions resolved per fallback tier",
		}, []string{"tier"}),
		PollTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "anchorid_poll_ticks_total",
			Help: "Confirmation poller status queries issued",
		}),
		CheckpointWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorid_checkpoint_writes_total",
			Help: "Checkpoint artifacts written, by stage and result",
		}, []string{"stage", "result"}),
	}
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
