// Package observe provides application-wide observability primitives for
// yomiage: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all yomiage metrics.
const meterName = "github.com/MrWong99/yomiage"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranslateDuration tracks LLM translation latency.
	TranslateDuration metric.Float64Histogram

	// SynthesizeDuration tracks text-to-speech synthesis latency.
	SynthesizeDuration metric.Float64Histogram

	// PlaybackDuration tracks audio playback time.
	PlaybackDuration metric.Float64Histogram

	// --- Counters ---

	// Jobs counts pipeline jobs leaving each stage. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	Jobs metric.Int64Counter

	// IngressRequests counts /translate_and_speak outcomes. Use with attribute:
	//   attribute.String("status", ...)
	IngressRequests metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of jobs waiting in each stage queue.
	// Use with attribute: attribute.String("queue", ...)
	QueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The upper
// buckets are wider than usual HTTP defaults because LLM translation and
// speech synthesis regularly take whole seconds.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranslateDuration, err = m.Float64Histogram("yomiage.translate.duration",
		metric.WithDescription("Latency of LLM translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesizeDuration, err = m.Float64Histogram("yomiage.synthesize.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("yomiage.playback.duration",
		metric.WithDescription("Wall-clock time spent playing synthesised audio."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Jobs, err = m.Int64Counter("yomiage.jobs",
		metric.WithDescription("Total pipeline jobs by stage and status."),
	); err != nil {
		return nil, err
	}
	if met.IngressRequests, err = m.Int64Counter("yomiage.ingress.requests",
		metric.WithDescription("Total speak requests by outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("yomiage.queue.depth",
		metric.WithDescription("Jobs currently waiting in each stage queue."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("yomiage.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordJob records a job leaving a pipeline stage with the given outcome
// ("processed", "failed" or "dropped").
func (m *Metrics) RecordJob(ctx context.Context, stage, status string) {
	m.Jobs.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordIngress records the outcome of a speak request ("queued",
// "duplicate", "busy" or "rejected").
func (m *Metrics) RecordIngress(ctx context.Context, status string) {
	m.IngressRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// AddQueueDepth moves the depth gauge for one stage queue by delta
// (+1 on enqueue, -1 on dequeue).
func (m *Metrics) AddQueueDepth(ctx context.Context, queue string, delta int64) {
	m.QueueDepth.Add(ctx, delta,
		metric.WithAttributes(attribute.String("queue", queue)),
	)
}
