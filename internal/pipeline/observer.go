package pipeline

import (
	"context"
	"time"
)

// Observer receives pipeline events for metrics and tracing. The loop calls
// it inline, so implementations must be cheap and non-blocking. internal/
// observe provides the OTel-backed implementation; NopObserver is the
// default.
type Observer interface {
	ListenAttempt(ctx context.Context)
	RecognitionCompleted(ctx context.Context, language string, took time.Duration)
	RecognitionFailed(ctx context.Context, kind string)
	WakeWordMatched(ctx context.Context, phrase string)
	CommandEnqueued(ctx context.Context, depth int)
	CommandDropped(ctx context.Context)
	SpeechOutcome(ctx context.Context, outcome string)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) ListenAttempt(context.Context)                                 {}
func (NopObserver) RecognitionCompleted(context.Context, string, time.Duration)   {}
func (NopObserver) RecognitionFailed(context.Context, string)                     {}
func (NopObserver) WakeWordMatched(context.Context, string)                       {}
func (NopObserver) CommandEnqueued(context.Context, int)                          {}
func (NopObserver) CommandDropped(context.Context)                                {}
func (NopObserver) SpeechOutcome(context.Context, string)                         {}

var _ Observer = NopObserver{}
