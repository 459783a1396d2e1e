package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	answerCounter  otelmetric.Int64Counter
	fallbackCounts otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	answerCounter, _ := meter.Int64Counter(
		"insights.answers",
		otelmetric.WithDescription("Answers returned, by source"),
	)

	fallbackCounts, _ := meter.Int64Counter(
		"insights.fallback",
		otelmetric.WithDescription("Fallback lookups, by topic"),
	)

	return &Observability{
		meterProvider:  provider,
		meter:          meter,
		jobCounter:     jobCounter,
		jobDuration:    jobDuration,
		answerCounter:  answerCounter,
		fallbackCounts: fallbackCounts,
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordAnswer counts an answer by where it came from ("upstream", "fallback", "apology").
func (o *Observability) RecordAnswer(ctx context.Context, source string) {
	if o == nil || o.answerCounter == nil {
		return
	}
	o.answerCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("source", source),
	))
}

func (o *Observability) RecordFallback(ctx context.Context, topic string) {
	if o == nil || o.fallbackCounts == nil {
		return
	}
	if topic == "" {
		topic = "none"
	}
	o.fallbackCounts.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("topic", topic),
	))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o.meterProvider.Shutdown(ctx)
}
