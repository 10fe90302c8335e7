// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics with a Prometheus exporter bridge, tracing helpers,
// and trace-aware structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [Metrics]
// implements [pipeline.Observer], so the listening loop feeds the
// instruments directly. Tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lberthe/gideon/internal/pipeline"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/lberthe/gideon"

// Metrics holds the OpenTelemetry instruments for the voice pipeline. All
// fields are safe for concurrent use.
type Metrics struct {
	// ListenAttempts counts capture cycles started by the listening loop.
	ListenAttempts metric.Int64Counter

	// Recognitions counts successful transcriptions. Attribute: language.
	Recognitions metric.Int64Counter

	// RecognitionDuration tracks capture-to-transcript latency.
	RecognitionDuration metric.Float64Histogram

	// RecognitionFailures counts failed cycles. Attribute: kind
	// (no_speech, not_understood, unavailable).
	RecognitionFailures metric.Int64Counter

	// WakeWordHits counts wake-phrase matches. Attribute: phrase.
	WakeWordHits metric.Int64Counter

	// QueueDepth reports the command queue length after each enqueue.
	QueueDepth metric.Int64Gauge

	// CommandsDropped counts commands discarded by the oldest-drop policy.
	CommandsDropped metric.Int64Counter

	// SpeakRequests counts speech output requests. Attribute: outcome
	// (started, skipped, preempted).
	SpeakRequests metric.Int64Counter

	// HTTPRequestDuration tracks request latency on the health and metrics
	// surface. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// speech-recognition round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ListenAttempts, err = m.Int64Counter("gideon.pipeline.listen_attempts",
		metric.WithDescription("Total capture cycles started by the listening loop."),
	); err != nil {
		return nil, err
	}
	if met.Recognitions, err = m.Int64Counter("gideon.pipeline.recognitions",
		metric.WithDescription("Total successful transcriptions by language."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionDuration, err = m.Float64Histogram("gideon.pipeline.recognition.duration",
		metric.WithDescription("Latency from captured utterance to transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecognitionFailures, err = m.Int64Counter("gideon.pipeline.recognition.failures",
		metric.WithDescription("Total failed listen cycles by failure kind."),
	); err != nil {
		return nil, err
	}
	if met.WakeWordHits, err = m.Int64Counter("gideon.pipeline.wakeword.hits",
		metric.WithDescription("Total wake-phrase matches by phrase."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64Gauge("gideon.queue.depth",
		metric.WithDescription("Command queue length after the last enqueue."),
	); err != nil {
		return nil, err
	}
	if met.CommandsDropped, err = m.Int64Counter("gideon.queue.dropped",
		metric.WithDescription("Total commands discarded by the oldest-drop policy."),
	); err != nil {
		return nil, err
	}
	if met.SpeakRequests, err = m.Int64Counter("gideon.speech.requests",
		metric.WithDescription("Total speech output requests by outcome."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("gideon.http.request.duration",
		metric.WithDescription("HTTP request latency on the health and metrics surface."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call from the global meter provider. Panics if instrument
// creation fails, which cannot happen with the global provider.
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

// ---- pipeline.Observer implementation ----

// ListenAttempt records one capture cycle.
func (m *Metrics) ListenAttempt(ctx context.Context) {
	m.ListenAttempts.Add(ctx, 1)
}

// RecognitionCompleted records a successful transcription and its latency.
func (m *Metrics) RecognitionCompleted(ctx context.Context, language string, took time.Duration) {
	m.Recognitions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("language", language)))
	m.RecognitionDuration.Record(ctx, took.Seconds())
}

// RecognitionFailed records a failed cycle by kind.
func (m *Metrics) RecognitionFailed(ctx context.Context, kind string) {
	m.RecognitionFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}

// WakeWordMatched records a wake-phrase hit.
func (m *Metrics) WakeWordMatched(ctx context.Context, phrase string) {
	m.WakeWordHits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("phrase", phrase)))
}

// CommandEnqueued records the queue depth after an enqueue.
func (m *Metrics) CommandEnqueued(ctx context.Context, depth int) {
	m.QueueDepth.Record(ctx, int64(depth))
}

// CommandDropped records one discarded command.
func (m *Metrics) CommandDropped(ctx context.Context) {
	m.CommandsDropped.Add(ctx, 1)
}

// SpeechOutcome records one speech output request by outcome.
func (m *Metrics) SpeechOutcome(ctx context.Context, outcome string) {
	m.SpeakRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

var _ pipeline.Observer = (*Metrics)(nil)
