package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"legalease/internal/model"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs           *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	uploadAttempts *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Pipeline runs by terminal stage.",
			},
			[]string{"outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		uploadAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upload_attempts_total",
				Help: "Storage upload attempts by result.",
			},
			[]string{"result"},
		),
	}

	for _, c := range []prometheus.Collector{m.runs, m.stageDuration, m.uploadAttempts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeStage(stage model.Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (m *Metrics) finishRun(outcome model.Stage) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(outcome)).Inc()
}

// UploadAttempt counts one storage attempt; it matches upload.AttemptObserver.
func (m *Metrics) UploadAttempt(_ int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.uploadAttempts.WithLabelValues(result).Inc()
}
