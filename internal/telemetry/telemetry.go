// Package telemetry holds the OpenTelemetry instruments shared by the
// inference packages. Without a configured provider every call is a no-op.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("fgbp")
	meter  = otel.Meter("fgbp")
)

var (
	bpRuns           metric.Int64Counter
	bpIterations     metric.Int64Histogram
	bpNonConverged   metric.Int64Counter
	beliefCorrection metric.Int64Counter
	oddsFloored      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		bpRuns, err = meter.Int64Counter(
			"bp_runs_total",
			metric.WithDescription("Total number of belief propagation runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		bpIterations, err = meter.Int64Histogram(
			"bp_iterations",
			metric.WithDescription("Sweeps performed per belief propagation run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		bpNonConverged, err = meter.Int64Counter(
			"bp_nonconverged_total",
			metric.WithDescription("Belief propagation runs that hit the iteration limit"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		beliefCorrection, err = meter.Int64Counter(
			"global_negative_belief_corrections_total",
			metric.WithDescription("Negative belief-of-false values clamped to zero by structured factors"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		oddsFloored, err = meter.Int64Counter(
			"global_odds_floored_total",
			metric.WithDescription("Incoming messages with zero false mass whose odds were capped"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// RecordRun records one finished belief propagation run.
func RecordRun(ctx context.Context, schedule, order string, iterations int, converged bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("schedule", schedule),
		attribute.String("order", order),
	)
	bpRuns.Add(ctx, 1, attrs)
	bpIterations.Record(ctx, int64(iterations), attrs)
	if !converged {
		bpNonConverged.Add(ctx, 1, attrs)
	}
}

// RecordBeliefCorrection counts one clamped negative belief.
func RecordBeliefCorrection(ctx context.Context, factor string) {
	if err := initMetrics(); err != nil {
		return
	}
	beliefCorrection.Add(ctx, 1, metric.WithAttributes(attribute.String("factor", factor)))
}

// RecordOddsFloored counts one capped log-odds value.
func RecordOddsFloored(ctx context.Context, factor string) {
	if err := initMetrics(); err != nil {
		return
	}
	oddsFloored.Add(ctx, 1, metric.WithAttributes(attribute.String("factor", factor)))
}

// StartInferSpan starts the span wrapping inference over one graph.
func StartInferSpan(ctx context.Context, index, numVars, numFactors int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "fgbp.Infer",
		trace.WithAttributes(
			attribute.Int("fgbp.graph_index", index),
			attribute.Int("fgbp.num_vars", numVars),
			attribute.Int("fgbp.num_factors", numFactors),
		),
	)
}

// SetInferResult annotates an inference span with its outcome.
func SetInferResult(span trace.Span, iterations int, converged bool, logPartition float64) {
	span.SetAttributes(
		attribute.Int("fgbp.iterations", iterations),
		attribute.Bool("fgbp.converged", converged),
		attribute.Float64("fgbp.log_partition", logPartition),
	)
}
