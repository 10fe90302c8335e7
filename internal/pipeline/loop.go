package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lberthe/gideon/pkg/provider/mic"
	"github.com/lberthe/gideon/pkg/provider/stt"
)

// LoopConfig carries the listening loop's timing parameters. Zero values are
// replaced by the documented defaults in NewLoop.
type LoopConfig struct {
	// ListenTimeout bounds the wait for speech to start in one capture.
	ListenTimeout time.Duration

	// PhraseTimeout bounds the length of one captured utterance.
	PhraseTimeout time.Duration

	// PauseThreshold is the trailing silence that ends an utterance.
	PauseThreshold time.Duration

	// RetryDelay is the base backoff delay after a failed cycle.
	RetryDelay time.Duration

	// BackoffFactor scales the delay growth per consecutive failure.
	BackoffFactor float64

	// BackoffCap bounds the grown delay.
	BackoffCap time.Duration

	// ExtendedBreak is slept once consecutive failures reach MaxRetries,
	// after which the failure counter resets.
	ExtendedBreak time.Duration

	// MaxRetries is the consecutive-failure count that triggers the
	// extended break.
	MaxRetries int
}

func (c *LoopConfig) applyDefaults() {
	if c.ListenTimeout <= 0 {
		c.ListenTimeout = 3 * time.Second
	}
	if c.PhraseTimeout <= 0 {
		c.PhraseTimeout = 8 * time.Second
	}
	if c.PauseThreshold <= 0 {
		c.PauseThreshold = 800 * time.Millisecond
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 0.5
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 5 * time.Second
	}
	if c.ExtendedBreak <= 0 {
		c.ExtendedBreak = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// LoopDeps are the collaborators the listening loop orchestrates. Mic may be
// nil when no capture hardware is available; the loop then runs degraded,
// reporting its own unavailability instead of crashing the process.
type LoopDeps struct {
	Mic        mic.Source
	Recognizer *Recognizer
	Calibrator *Calibrator
	Detector   *Detector
	Queue      *CommandQueue
	Stats      *Stats
}

// LoopOption is a functional option for configuring a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger. Defaults to slog.Default.
func WithLoopLogger(l *slog.Logger) LoopOption {
	return func(lp *Loop) {
		lp.logger = l
	}
}

// WithLoopObserver sets the metrics observer. Defaults to NopObserver.
func WithLoopObserver(o Observer) LoopOption {
	return func(lp *Loop) {
		lp.observer = o
	}
}

// Loop is the background listening loop: calibrate when due, capture one
// utterance, recognize it, score it for wake phrases, enqueue the command
// and back off on failures. Exactly one goroutine runs the loop; it owns the
// microphone for the duration of each capture.
type Loop struct {
	cfg      LoopConfig
	deps     LoopDeps
	logger   *slog.Logger
	observer Observer
	degraded bool
}

// NewLoop validates the collaborators and returns a runnable Loop. A nil
// Mic puts the loop into degraded mode from the start.
func NewLoop(cfg LoopConfig, deps LoopDeps, opts ...LoopOption) (*Loop, error) {
	cfg.applyDefaults()
	if deps.Recognizer == nil {
		return nil, errors.New("pipeline: recognizer must not be nil")
	}
	if deps.Calibrator == nil {
		return nil, errors.New("pipeline: calibrator must not be nil")
	}
	if deps.Detector == nil {
		return nil, errors.New("pipeline: detector must not be nil")
	}
	if deps.Queue == nil {
		return nil, errors.New("pipeline: queue must not be nil")
	}
	if deps.Stats == nil {
		deps.Stats = NewStats()
	}
	l := &Loop{
		cfg:      cfg,
		deps:     deps,
		logger:   slog.Default(),
		observer: NopObserver{},
		degraded: deps.Mic == nil,
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Degraded reports whether the loop is running without capture hardware.
func (l *Loop) Degraded() bool {
	return l.degraded
}

// Run drives the loop until ctx is cancelled. Cancellation is observed at
// the top of each cycle; an in-flight capture finishes naturally, bounded by
// the listen and phrase timeouts. Run never returns a pipeline failure; the
// worst outcome is an idle loop reporting degraded health.
func (l *Loop) Run(ctx context.Context) error {
	if l.degraded {
		return l.runDegraded(ctx)
	}

	l.logger.Info("listening loop started",
		"languages", l.deps.Recognizer.Languages(),
		"listen_timeout", l.cfg.ListenTimeout,
		"phrase_timeout", l.cfg.PhraseTimeout,
	)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("listening loop stopped")
			return nil
		default:
		}
		l.cycle(ctx)
	}
}

// runDegraded idles, periodically reporting that the pipeline is down.
func (l *Loop) runDegraded(ctx context.Context) error {
	l.logger.Warn("no capture hardware available, pipeline is degraded")
	ticker := time.NewTicker(l.cfg.ExtendedBreak)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.logger.Warn("pipeline degraded, not listening")
		}
	}
}

// cycle runs one pass: Calibrating, Capturing, Recognizing, Scoring,
// Enqueuing, and BackoffWait when a cycle fails.
func (l *Loop) cycle(ctx context.Context) {
	if l.deps.Calibrator.ShouldRecalibrate(time.Now()) {
		threshold, err := l.deps.Calibrator.Calibrate(ctx, l.deps.Mic)
		if err != nil {
			l.logger.Warn("calibration skipped, keeping prior threshold",
				"threshold", threshold,
				"error", err,
			)
		} else {
			l.logger.Debug("recalibrated energy threshold", "threshold", threshold)
		}
	}

	l.deps.Stats.RecordListen()
	l.observer.ListenAttempt(ctx)

	captureCtx, cancel := context.WithTimeout(ctx, l.cfg.ListenTimeout+l.cfg.PhraseTimeout)
	utt, err := l.deps.Mic.Capture(captureCtx, mic.CaptureConfig{
		ListenTimeout:   l.cfg.ListenTimeout,
		PhraseTimeout:   l.cfg.PhraseTimeout,
		PauseThreshold:  l.cfg.PauseThreshold,
		EnergyThreshold: l.deps.Calibrator.Threshold(),
	})
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, mic.ErrNoSpeech):
			// Silence is the common case, not a fault.
			l.observer.RecognitionFailed(ctx, "no_speech")
		case ctx.Err() != nil:
		default:
			// Hardware failure mid-capture counts as the service being
			// unavailable.
			l.logger.Error("capture failed", "error", err)
			l.failureBackoff(ctx, "unavailable")
		}
		return
	}

	start := time.Now()
	tr, err := l.deps.Recognizer.Recognize(ctx, utt)
	if err != nil {
		switch {
		case errors.Is(err, stt.ErrNoSpeech):
			l.observer.RecognitionFailed(ctx, "no_speech")
		case ctx.Err() != nil:
		case errors.Is(err, stt.ErrNotUnderstood):
			l.logger.Debug("speech not understood")
			l.failureBackoff(ctx, "not_understood")
		default:
			l.logger.Warn("recognition unavailable", "error", err)
			l.failureBackoff(ctx, "unavailable")
		}
		return
	}
	took := time.Since(start)

	l.deps.Calibrator.ResetFailures()
	l.deps.Stats.RecordRecognition(took)
	l.observer.RecognitionCompleted(ctx, tr.Language, took)
	l.logger.Info("recognized utterance",
		"text", tr.Text,
		"language", tr.Language,
		"took", took,
	)

	phrase, similarity, isWake := l.deps.Detector.Detect(tr.Text)
	if isWake {
		l.deps.Stats.RecordWakeHit()
		l.observer.WakeWordMatched(ctx, phrase)
		l.logger.Info("wake phrase matched", "phrase", phrase, "similarity", similarity)
	}

	// Every recognized utterance is enqueued; wake-word-only filtering is
	// the consumer's policy decision.
	cmd := VoiceCommand{
		Text:          tr.Text,
		Confidence:    tr.Confidence,
		CapturedAt:    utt.CapturedAt,
		Language:      tr.Language,
		IsWakeWord:    isWake,
		MatchedPhrase: phrase,
		Similarity:    similarity,
	}
	if dropped := l.deps.Queue.Push(cmd); dropped {
		l.deps.Stats.RecordDrop()
		l.observer.CommandDropped(ctx)
		l.logger.Warn("queue full, dropped oldest command")
	}
	l.observer.CommandEnqueued(ctx, l.deps.Queue.Len())
}

// failureBackoff records a failed cycle and sleeps the grown delay. Once the
// consecutive-failure count reaches MaxRetries the loop takes the extended
// break and resets the counter.
func (l *Loop) failureBackoff(ctx context.Context, kind string) {
	n := l.deps.Calibrator.RecordFailure()
	l.deps.Stats.RecordFailure(n)
	l.observer.RecognitionFailed(ctx, kind)

	if n >= l.cfg.MaxRetries {
		l.logger.Warn("max consecutive failures reached, taking extended break",
			"failures", n,
			"break", l.cfg.ExtendedBreak,
		)
		sleepCtx(ctx, l.cfg.ExtendedBreak)
		l.deps.Calibrator.ResetFailures()
		l.deps.Stats.ResetConsecutiveFailures()
		return
	}

	delay := BackoffDelay(l.cfg, n)
	l.logger.Debug("backing off after failure", "failures", n, "delay", delay)
	sleepCtx(ctx, delay)
}

// BackoffDelay returns the wait after n consecutive failures:
// RetryDelay*(1+n*BackoffFactor) capped at BackoffCap.
func BackoffDelay(cfg LoopConfig, n int) time.Duration {
	d := time.Duration(float64(cfg.RetryDelay) * (1 + float64(n)*cfg.BackoffFactor))
	if d > cfg.BackoffCap {
		d = cfg.BackoffCap
	}
	return d
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
