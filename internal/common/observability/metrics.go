package observability

import (
	"context"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability bundles the OTel meter and tracer providers for the notifier.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider tracerProvider
	meter          otelmetric.Meter
	opCounter      otelmetric.Int64Counter
	opDuration     otelmetric.Float64Histogram
}

// Config selects the exporters. A nil Registerer means the Prometheus
// default registry; an empty JaegerEndpoint keeps spans in-process.
type Config struct {
	ServiceName    string
	JaegerEndpoint string
	Registerer     promclient.Registerer
}

// New wires an OTel MeterProvider behind a Prometheus exporter and a
// TracerProvider, and installs both globally.
func New(ctx context.Context, cfg Config) (*Observability, error) {
	opts := []prometheus.Option{}
	if cfg.Registerer != nil {
		opts = append(opts, prometheus.WithRegisterer(cfg.Registerer))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	tp, err := newTracerProvider(ctx, cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	meter := provider.Meter(cfg.ServiceName)

	opCounter, err := meter.Int64Counter(
		"invites.operations",
		otelmetric.WithDescription("Number of invitation operations handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operation counter: %w", err)
	}

	opDuration, err := meter.Float64Histogram(
		"invites.operation.duration",
		otelmetric.WithDescription("Invitation operation duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operation histogram: %w", err)
	}

	return &Observability{
		meterProvider:  provider,
		tracerProvider: tp,
		meter:          meter,
		opCounter:      opCounter,
		opDuration:     opDuration,
	}, nil
}

// RecordOperation counts one operation and its latency.
func (o *Observability) RecordOperation(ctx context.Context, op, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("status", status),
	)
	if o.opCounter != nil {
		o.opCounter.Add(ctx, 1, attrs)
	}
	if o.opDuration != nil {
		o.opDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	}
}

// Shutdown flushes spans and metrics.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var firstErr error
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
