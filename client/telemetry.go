package client

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/shopkit/component"
	"github.com/kbukum/shopkit/logger"
	"github.com/kbukum/shopkit/observability"
	"github.com/kbukum/shopkit/version"
)

// telemetry installs the OTLP tracer and meter providers while running.
type telemetry struct {
	cfg         observability.Config
	service     string
	environment string
	log         *logger.Logger

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var (
	_ component.Component   = (*telemetry)(nil)
	_ component.Describable = (*telemetry)(nil)
)

func (t *telemetry) Name() string { return "telemetry" }

func (t *telemetry) Start(ctx context.Context) error {
	if !t.cfg.Enabled {
		return nil
	}
	tp, err := observability.InitTracer(ctx, t.cfg.TracerConfig(t.service, version.Version, t.environment))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	meterCfg := t.cfg.MeterConfig(t.service, version.Version, t.environment)
	mp, err := observability.InitMeter(ctx, &meterCfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("telemetry: %w", err)
	}
	t.tp, t.mp = tp, mp
	t.log.Info("telemetry exporting", logger.Fields("endpoint", t.cfg.Endpoint))
	return nil
}

func (t *telemetry) Stop(ctx context.Context) error {
	var errs []error
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
	}
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
	}
	t.tp, t.mp = nil, nil
	return errors.Join(errs...)
}

func (t *telemetry) Health(context.Context) component.Health {
	h := component.Health{Name: t.Name(), Status: component.StatusHealthy}
	if !t.cfg.Enabled {
		h.Message = "disabled"
	}
	return h
}

func (t *telemetry) Describe() component.Description {
	details := "disabled"
	if t.cfg.Enabled {
		details = t.cfg.Endpoint
	}
	return component.Description{Type: "telemetry", Details: details}
}
