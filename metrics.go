package colship

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for pipeline execution.
// A single Metrics value can be shared by multiple runners.
type Metrics struct {
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	stepsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colship",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by pipeline ID and outcome.",
		}, []string{"pipeline", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "colship",
			Name:      "pipeline_run_duration_seconds",
			Help:      "Duration of pipeline runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline"}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colship",
			Name:      "pipeline_steps_total",
			Help:      "Executed steps by pipeline ID and outcome.",
		}, []string{"pipeline", "outcome"}),
	}

	reg.MustRegister(m.runsTotal, m.runDuration, m.stepsTotal)
	return m
}

// Middleware returns a runner middleware that records run counts and
// durations.
func (m *Metrics) Middleware() Middleware {
	return func(next RunnerFunc) RunnerFunc {
		return func(ctx context.Context, pipeline *Pipeline, logger Logger) error {
			timer := prometheus.NewTimer(m.runDuration.WithLabelValues(pipeline.ID))
			err := next(ctx, pipeline, logger)
			timer.ObserveDuration()

			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			m.runsTotal.WithLabelValues(pipeline.ID, outcome).Inc()

			return err
		}
	}
}

// StepMiddleware returns a pipeline middleware that counts executed steps.
func (m *Metrics) StepMiddleware() PipelineMiddleware {
	return func(next PipelineStepRunnerFunc) PipelineStepRunnerFunc {
		return func(ctx context.Context, step *Step, pipeline *Pipeline, logger Logger) error {
			err := next(ctx, step, pipeline, logger)

			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			m.stepsTotal.WithLabelValues(pipeline.ID, outcome).Inc()

			return err
		}
	}
}
