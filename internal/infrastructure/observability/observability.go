// Package observability wires OpenTelemetry tracing and metrics. When no OTLP
// endpoint is configured the global no-op providers stay in place and every
// instrument still works.
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/doeshing/deskgate/internal/domain"
)

// InstrumentationName scopes every tracer and meter.
const InstrumentationName = "github.com/doeshing/deskgate"

// Attribute keys shared by spans and metrics.
var (
	AttrAction    = attribute.Key("deskgate.action")
	AttrKind      = attribute.Key("deskgate.action.kind")
	AttrRisk      = attribute.Key("deskgate.action.risk")
	AttrIndex     = attribute.Key("deskgate.action.index")
	AttrStatus    = attribute.Key("deskgate.action.status")
	AttrErrorKind = attribute.Key("deskgate.error.kind")
	AttrLayer     = attribute.Key("deskgate.automation.layer")
	AttrOutcome   = attribute.Key("deskgate.automation.outcome")
	AttrOperation = attribute.Key("deskgate.automation.operation")
	AttrElevation = attribute.Key("deskgate.elevation")
	AttrRunID     = attribute.Key("deskgate.run.id")
)

// Provider owns the SDK providers when export is enabled.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// New installs OTLP gRPC exporters for traces and metrics. An empty endpoint
// returns a disabled provider.
func New(ctx context.Context, settings domain.ObservabilitySettings, version string) (*Provider, error) {
	p := &Provider{}
	if settings.OTLPEndpoint == "" {
		return p, nil
	}
	serviceName := settings.ServiceName
	if serviceName == "" {
		serviceName = "deskgate"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(settings.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(settings.OTLPEndpoint)}
	if settings.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(5*time.Second)),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = p.tracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(p.meterProvider)
	return p, nil
}

// Enabled reports whether telemetry is exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tracerProvider != nil
}

// Shutdown flushes and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tracerProvider != nil {
		errs = append(errs, p.tracerProvider.Shutdown(ctx))
	}
	if p.meterProvider != nil {
		errs = append(errs, p.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Tracer returns the package tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Meter returns the package meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}
