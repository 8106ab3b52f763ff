// Package observe provides application-wide observability primitives for
// crawlfree: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all crawlfree metrics.
const meterName = "github.com/MrWong99/crawlfree"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// DetectorDuration tracks the latency of one detector call.
	DetectorDuration metric.Float64Histogram

	// PipelineDuration tracks one full reasoning job, detector included.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// FramesReceived counts frames offered to the pipeline worker.
	FramesReceived metric.Int64Counter

	// FramesDropped counts frames that were not processed. Use with attribute:
	//   attribute.String("reason", ...) // "busy" or "idle"
	FramesDropped metric.Int64Counter

	// DetectionsDiscarded counts detections removed before tracking. Use with
	// attribute:
	//   attribute.String("reason", ...) // "malformed", "low_confidence", "unmappable", "duplicate"
	DetectionsDiscarded metric.Int64Counter

	// Queries counts voice queries. Use with attribute:
	//   attribute.String("outcome", ...) // "accepted" or "unsupported"
	Queries metric.Int64Counter

	// RelationsComputed counts spatial relations. Use with attribute:
	//   attribute.String("kind", ...)
	RelationsComputed metric.Int64Counter

	// Announcements counts guidance announcements. Use with attribute:
	//   attribute.String("status", ...) // "accepted", "busy" or "error"
	Announcements metric.Int64Counter

	// --- Error counters ---

	// DetectorErrors counts failed detector calls.
	DetectorErrors metric.Int64Counter

	// --- Gauges ---

	// LiveTracks reports the number of live tracked objects after each job.
	LiveTracks metric.Int64Gauge

	// OverlayClients tracks the number of connected overlay websockets.
	OverlayClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for on-device
// detection latencies.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.DetectorDuration, err = m.Float64Histogram("crawlfree.detector.duration",
		metric.WithDescription("Latency of one detector call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("crawlfree.pipeline.duration",
		metric.WithDescription("Latency of one reasoning job."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesReceived, err = m.Int64Counter("crawlfree.frames.received",
		metric.WithDescription("Total frames offered to the reasoning worker."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("crawlfree.frames.dropped",
		metric.WithDescription("Total frames dropped by reason."),
	); err != nil {
		return nil, err
	}
	if met.DetectionsDiscarded, err = m.Int64Counter("crawlfree.detections.discarded",
		metric.WithDescription("Total detections removed before tracking by reason."),
	); err != nil {
		return nil, err
	}
	if met.Queries, err = m.Int64Counter("crawlfree.queries",
		metric.WithDescription("Total voice queries by outcome."),
	); err != nil {
		return nil, err
	}
	if met.RelationsComputed, err = m.Int64Counter("crawlfree.relations.computed",
		metric.WithDescription("Total spatial relations computed by kind."),
	); err != nil {
		return nil, err
	}
	if met.Announcements, err = m.Int64Counter("crawlfree.announcements",
		metric.WithDescription("Total guidance announcements by sink status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.DetectorErrors, err = m.Int64Counter("crawlfree.detector.errors",
		metric.WithDescription("Total failed detector calls."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.LiveTracks, err = m.Int64Gauge("crawlfree.tracks.live",
		metric.WithDescription("Number of live tracked objects."),
	); err != nil {
		return nil, err
	}
	if met.OverlayClients, err = m.Int64UpDownCounter("crawlfree.overlay.clients",
		metric.WithDescription("Number of connected overlay clients."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("crawlfree.http.request.duration",
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

// RecordFrameDropped records a dropped frame with the given reason.
func (m *Metrics) RecordFrameDropped(ctx context.Context, reason string) {
	m.FramesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordDiscarded records n discarded detections with the given reason. Zero
// counts are skipped.
func (m *Metrics) RecordDiscarded(ctx context.Context, reason string, n int) {
	if n <= 0 {
		return
	}
	m.DetectionsDiscarded.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordQuery records a voice query outcome.
func (m *Metrics) RecordQuery(ctx context.Context, outcome string) {
	m.Queries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRelation records one computed spatial relation.
func (m *Metrics) RecordRelation(ctx context.Context, kind string) {
	m.RelationsComputed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordAnnouncement records one announcement attempt with the sink status.
func (m *Metrics) RecordAnnouncement(ctx context.Context, status string) {
	m.Announcements.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
