package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records per-stage outcomes for recording processing.
type PipelineMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	inline   prometheus.Counter
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stages in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_success",
		Help: "Successful pipeline stage executions.",
	}, []string{"stage"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_failure",
		Help: "Failed pipeline stage executions.",
	}, []string{"stage"})
	inline := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_inline_fallbacks",
		Help: "Jobs executed inline because the queue was unreachable.",
	})
	reg.MustRegister(duration, success, failure, inline)
	return &PipelineMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		inline:   inline,
	}
}

// ObserveDuration records the duration for the named stage.
func (p *PipelineMetrics) ObserveDuration(stage string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named stage.
func (p *PipelineMetrics) IncSuccess(stage string) {
	if p == nil || p.success == nil {
		return
	}
	p.success.WithLabelValues(normalizeLabel(stage)).Inc()
}

// IncFailure increments the failure counter for the named stage.
func (p *PipelineMetrics) IncFailure(stage string) {
	if p == nil || p.failure == nil {
		return
	}
	p.failure.WithLabelValues(normalizeLabel(stage)).Inc()
}

// IncInlineFallback counts a job that ran synchronously in the API process.
func (p *PipelineMetrics) IncInlineFallback() {
	if p == nil || p.inline == nil {
		return
	}
	p.inline.Inc()
}

func normalizeLabel(stage string) string {
	if stage == "" {
		return "unknown"
	}
	return stage
}
