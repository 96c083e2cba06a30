// Package observability wires OpenTelemetry tracing and metrics for the
// request pipeline.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("shopdemo"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanDispatch)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("shopdemo"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewPipelineMetrics(observability.Meter("shopkit"))
//	metrics.RecordDispatch(ctx, "GET", observability.OutcomeOK, 2, elapsed)
//
// A nil *PipelineMetrics is valid and records nothing.
package observability
