package colship

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/colship/colship"

// TracingMiddleware creates a middleware that records an OpenTelemetry span
// for the whole pipeline run. Step boundaries are recorded as span events so
// the trace shows where a failed run aborted.
func TracingMiddleware() Middleware {
	return func(next RunnerFunc) RunnerFunc {
		return func(ctx context.Context, pipeline *Pipeline, logger Logger) error {
			tracer := otel.Tracer(tracerName)

			ctx, span := tracer.Start(ctx, "pipeline.run",
				trace.WithAttributes(
					attribute.String("pipeline.id", pipeline.ID),
					attribute.String("pipeline.name", pipeline.Name),
					attribute.Int("pipeline.steps", len(pipeline.Steps)),
				),
			)
			defer span.End()

			err := next(ctx, pipeline, logger)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}

			return err
		}
	}
}

// StepTracingMiddleware creates a pipeline middleware that records one span
// per step, nested under the run span when TracingMiddleware is also in use.
func StepTracingMiddleware() PipelineMiddleware {
	return func(next PipelineStepRunnerFunc) PipelineStepRunnerFunc {
		return func(ctx context.Context, step *Step, pipeline *Pipeline, logger Logger) error {
			tracer := otel.Tracer(tracerName)

			ctx, span := tracer.Start(ctx, "pipeline.step",
				trace.WithAttributes(
					attribute.String("step.id", step.ID),
					attribute.String("step.name", step.Name),
					attribute.Int("step.tasks", len(step.Tasks)),
				),
			)
			defer span.End()

			err := next(ctx, step, pipeline, logger)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}

			return err
		}
	}
}
