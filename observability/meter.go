package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/shopkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the global OpenTelemetry meter provider.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Dispatch outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Refresh outcomes.
const (
	RefreshSuccess   = "success"
	RefreshFailure   = "failure"
	RefreshCancelled = "cancelled"
	RefreshJoined    = "joined"
)

// PipelineMetrics holds the instruments recorded by the dispatcher and the
// session coordinator.
type PipelineMetrics struct {
	dispatchTotal    metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	dispatchActive   metric.Int64UpDownCounter
	retryTotal       metric.Int64Counter
	refreshTotal     metric.Int64Counter
}

// NewPipelineMetrics creates the instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	dispatchTotal, err := meter.Int64Counter("pipeline.dispatch.total",
		metric.WithDescription("Dispatched requests by method and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.dispatch.total counter: %w", err)
	}

	dispatchDuration, err := meter.Float64Histogram("pipeline.dispatch.duration",
		metric.WithDescription("End-to-end dispatch duration including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.dispatch.duration histogram: %w", err)
	}

	dispatchActive, err := meter.Int64UpDownCounter("pipeline.dispatch.active",
		metric.WithDescription("Dispatches currently in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.dispatch.active counter: %w", err)
	}

	retryTotal, err := meter.Int64Counter("pipeline.retry.total",
		metric.WithDescription("Resubmissions by outcome of the recovery action"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.retry.total counter: %w", err)
	}

	refreshTotal, err := meter.Int64Counter("session.refresh.total",
		metric.WithDescription("Session refresh flights and joins by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session.refresh.total counter: %w", err)
	}

	return &PipelineMetrics{
		dispatchTotal:    dispatchTotal,
		dispatchDuration: dispatchDuration,
		dispatchActive:   dispatchActive,
		retryTotal:       retryTotal,
		refreshTotal:     refreshTotal,
	}, nil
}

// DispatchStarted increments the active dispatch count.
func (m *PipelineMetrics) DispatchStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.dispatchActive.Add(ctx, 1)
}

// RecordDispatch records one finished dispatch and decrements the active count.
func (m *PipelineMetrics) RecordDispatch(ctx context.Context, method, outcome string, attempts int, duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchActive.Add(ctx, -1)
	m.dispatchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
		attribute.Bool("retried", attempts > 0),
	))
	m.dispatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
	))
}

// RecordRetry records a retry decision. outcome is "resubmitted",
// "exhausted" or "recovery_failed".
func (m *PipelineMetrics) RecordRetry(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRefresh records a refresh flight or a follower joining one.
func (m *PipelineMetrics) RecordRefresh(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
