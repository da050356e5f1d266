// Package telemetry installs the OpenTelemetry meter and tracer providers.
//
// Both signals are off by default; disabled signals get no-op providers.
// Metrics export to stdout or to an OTLP/HTTP collector. Traces export to stdout.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/frahmantamala/kitchen-ops/internal"
)

const instrumentationScope = "github.com/frahmantamala/kitchen-ops"

type Telemetry struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	shutdownFns    []func(context.Context) error
}

// Init builds providers from cfg and registers them globally. Output of the
// stdout exporters goes to w, or to stdout when w is nil.
func Init(ctx context.Context, cfg internal.ObservabilityConfig, version string, w io.Writer) (*Telemetry, error) {
	if w == nil {
		w = os.Stdout
	}

	t := &Telemetry{
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
	}

	if cfg.Metrics.Enabled || cfg.Tracing.Enabled {
		res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
			attribute.String("service.name", serviceName(cfg)),
			attribute.String("service.version", version),
		))
		if err != nil {
			return nil, fmt.Errorf("telemetry: resource: %w", err)
		}

		if cfg.Metrics.Enabled {
			mp, err := buildMeterProvider(ctx, cfg.Metrics, res, w)
			if err != nil {
				return nil, fmt.Errorf("telemetry: meter provider: %w", err)
			}
			t.meterProvider = mp
			t.shutdownFns = append(t.shutdownFns, mp.Shutdown)
		}

		if cfg.Tracing.Enabled {
			tp, err := buildTracerProvider(cfg.Tracing, res, w)
			if err != nil {
				return nil, fmt.Errorf("telemetry: tracer provider: %w", err)
			}
			t.tracerProvider = tp
			t.shutdownFns = append(t.shutdownFns, tp.Shutdown)
		}
	}

	otel.SetMeterProvider(t.meterProvider)
	otel.SetTracerProvider(t.tracerProvider)
	return t, nil
}

func serviceName(cfg internal.ObservabilityConfig) string {
	if cfg.Tracing.ServiceName != "" {
		return cfg.Tracing.ServiceName
	}
	return "kitchen-ops"
}

func buildMeterProvider(ctx context.Context, cfg internal.MetricsConfig, res *resource.Resource, w io.Writer) (*sdkmetric.MeterProvider, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	var exp sdkmetric.Exporter
	var err error
	switch cfg.Exporter {
	case "otlp":
		exp, err = otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	case "stdout", "":
		exp, err = stdoutmetric.New(stdoutmetric.WithWriter(w))
	default:
		err = fmt.Errorf("unknown metrics exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	), nil
}

func buildTracerProvider(cfg internal.TracingConfig, res *resource.Resource, w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))
	if cfg.SamplingRate >= 1 {
		sampler = sdktrace.AlwaysSample()
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exp),
	), nil
}

// Meter returns a meter with the given instrumentation name (or the global scope).
func (t *Telemetry) Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return t.meterProvider.Meter(name)
}

// Tracer returns a tracer with the given instrumentation name (or the global scope).
func (t *Telemetry) Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return t.tracerProvider.Tracer(name)
}

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdownFns {
		errs = append(errs, fn(ctx))
	}
	t.shutdownFns = nil
	return errors.Join(errs...)
}
