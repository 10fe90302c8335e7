// Package app wires all Gideon subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the listening loop, the command consumer, and the
// HTTP surface until the context is cancelled, and Shutdown tears everything
// down in order.
//
// For testing, inject mock implementations via functional options
// (WithResponder, WithObserver, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lberthe/gideon/internal/config"
	"github.com/lberthe/gideon/internal/health"
	"github.com/lberthe/gideon/internal/observe"
	"github.com/lberthe/gideon/internal/pipeline"
	"github.com/lberthe/gideon/internal/resilience"
	"github.com/lberthe/gideon/internal/respond"
	"github.com/lberthe/gideon/pkg/provider/mic"
	"github.com/lberthe/gideon/pkg/provider/stt"
	"github.com/lberthe/gideon/pkg/provider/tts"
)

// popTimeout bounds one consumer wait on the command queue so ctx
// cancellation is observed promptly.
const popTimeout = 500 * time.Millisecond

// NamedSTT pairs a transcription provider with the name it was registered
// under, for failover logging and breaker state reporting.
type NamedSTT struct {
	Name     string
	Provider stt.Provider
}

// Providers holds one value per provider slot. Nil (or zero) means the slot
// is not configured and the app substitutes its degraded fallback. Populated
// by main.go via the config registry.
type Providers struct {
	STT          NamedSTT
	STTFallbacks []NamedSTT
	TTS          tts.Engine
	Mic          mic.Source
}

// App owns all subsystem lifetimes and orchestrates the Gideon voice pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	stats       *pipeline.Stats
	queue       *pipeline.CommandQueue
	calibrator  *pipeline.Calibrator
	detector    *pipeline.Detector
	transcriber *resilience.TranscriberGroup
	recognizer  *pipeline.Recognizer
	speaker     *pipeline.Speaker
	loop        *pipeline.Loop
	responder   respond.Generator
	observer    pipeline.Observer

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithResponder injects a response generator instead of the canned one built
// from config.
func WithResponder(g respond.Generator) Option {
	return func(a *App) { a.responder = g }
}

// WithObserver injects a pipeline observer instead of the default OTel
// metrics observer.
func WithObserver(o pipeline.Observer) Option {
	return func(a *App) { a.observer = o }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if a.observer == nil {
		a.observer = observe.DefaultMetrics()
	}

	audioCfg := cfg.Audio

	// ── 1. Shared state ──────────────────────────────────────────────────
	a.stats = pipeline.NewStats()
	a.queue = pipeline.NewCommandQueue(audioCfg.QueueCapacity)

	// ── 2. Calibration ───────────────────────────────────────────────────
	a.calibrator = pipeline.NewCalibrator(pipeline.CalibrationConfig{
		AmbientDuration:  audioCfg.AmbientDuration.Std(),
		MinThreshold:     audioCfg.EnergyMin,
		MaxThreshold:     audioCfg.EnergyMax,
		InitialThreshold: audioCfg.InitialThreshold,
		Interval:         audioCfg.RecalibrationInterval.Std(),
	})

	// ── 3. Wake-word detector ────────────────────────────────────────────
	a.detector = pipeline.NewDetector(audioCfg.WakePhrases, audioCfg.WakeThreshold)

	// ── 4. Transcription with failover ───────────────────────────────────
	primary := providers.STT
	if primary.Provider == nil {
		primary = NamedSTT{Name: "unavailable", Provider: stt.Unavailable{}}
	}
	a.transcriber = resilience.NewTranscriberGroup(primary.Name, primary.Provider, resilience.BreakerConfig{})
	for _, fb := range providers.STTFallbacks {
		if fb.Provider == nil {
			continue
		}
		a.transcriber.AddFallback(fb.Name, fb.Provider)
	}

	recognizer, err := pipeline.NewRecognizer(a.transcriber, audioCfg.Languages(), audioCfg.RecognizeTimeout.Std())
	if err != nil {
		return nil, fmt.Errorf("app: init recognizer: %w", err)
	}
	a.recognizer = recognizer

	// ── 5. Speech output ─────────────────────────────────────────────────
	engine := providers.TTS
	if engine == nil {
		engine = tts.Noop{}
	}
	speaker, err := pipeline.NewSpeaker(engine)
	if err != nil {
		return nil, fmt.Errorf("app: init speaker: %w", err)
	}
	a.speaker = speaker

	// ── 6. Listening loop ────────────────────────────────────────────────
	loop, err := pipeline.NewLoop(pipeline.LoopConfig{
		ListenTimeout:  audioCfg.ListenTimeout.Std(),
		PhraseTimeout:  audioCfg.PhraseTimeout.Std(),
		PauseThreshold: audioCfg.PauseThreshold.Std(),
		RetryDelay:     audioCfg.RetryDelay.Std(),
		BackoffFactor:  audioCfg.BackoffFactor,
		BackoffCap:     audioCfg.BackoffCap.Std(),
		ExtendedBreak:  audioCfg.ExtendedBreak.Std(),
		MaxRetries:     audioCfg.MaxRetries,
	}, pipeline.LoopDeps{
		Mic:        providers.Mic,
		Recognizer: a.recognizer,
		Calibrator: a.calibrator,
		Detector:   a.detector,
		Queue:      a.queue,
		Stats:      a.stats,
	}, pipeline.WithLoopObserver(a.observer))
	if err != nil {
		return nil, fmt.Errorf("app: init loop: %w", err)
	}
	a.loop = loop

	// ── 7. Responder ─────────────────────────────────────────────────────
	if a.responder == nil {
		a.responder = buildResponder(cfg.Responder)
	}

	if providers.Mic != nil {
		a.closers = append(a.closers, providers.Mic.Close)
	}

	return a, nil
}

// buildResponder constructs the canned generator from config, seeding it with
// the wall clock only when no explicit seed is set.
func buildResponder(cfg config.ResponderConfig) *respond.Canned {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return respond.NewCanned(seed,
		respond.WithPhrases(respond.CategoryGreeting, cfg.Greetings),
		respond.WithPhrases(respond.CategoryGeneral, cfg.General),
		respond.WithPhrases(respond.CategoryError, cfg.Errors),
	)
}

// Stats exposes a snapshot of the pipeline counters.
func (a *App) Stats() pipeline.StatsSnapshot {
	return a.stats.Snapshot()
}

// Queue exposes the command queue, mainly for tests that act as the consumer.
func (a *App) Queue() *pipeline.CommandQueue {
	return a.queue
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the listening loop, the command consumer, and the HTTP surface,
// and blocks until ctx is cancelled or one of them fails. A cancelled context
// is a normal stop and returns nil.
func (a *App) Run(ctx context.Context) error {
	a.selfTest(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.loop.Run(ctx)
	})

	g.Go(func() error {
		a.consumeCommands(ctx)
		return nil
	})

	g.Go(func() error {
		return a.serveHTTP(ctx)
	})

	slog.Info("app running",
		"degraded", a.loop.Degraded(),
		"languages", a.cfg.Audio.Languages(),
		"wake_phrases", a.cfg.Audio.WakePhrases,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// selfTest exercises the capture and transcription path once at startup. The
// original assistant did this as a microphone test; failures are logged and
// never fatal, since a quiet room legitimately produces no speech.
func (a *App) selfTest(ctx context.Context) {
	if a.providers.Mic == nil {
		slog.Warn("microphone self-test skipped, no capture hardware")
		return
	}

	a.pinInputDevice()

	testCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	utt, err := a.providers.Mic.Capture(testCtx, mic.CaptureConfig{
		ListenTimeout:   2 * time.Second,
		PhraseTimeout:   3 * time.Second,
		PauseThreshold:  a.cfg.Audio.PauseThreshold.Std(),
		EnergyThreshold: a.calibrator.Threshold(),
	})
	if err != nil {
		if errors.Is(err, mic.ErrNoSpeech) {
			slog.Info("microphone self-test: capture works, no speech heard")
		} else {
			slog.Warn("microphone self-test capture failed", "err", err)
		}
		return
	}

	transcript, err := a.transcriber.Transcribe(testCtx, utt, a.cfg.Audio.Language)
	if err != nil {
		slog.Warn("microphone self-test transcription failed", "err", err)
		return
	}
	slog.Info("microphone self-test passed", "heard", transcript.Text)
}

// pinInputDevice resolves the capture device and applies it to the source,
// so subsequent captures no longer run on the host default. A configured
// input_device name that matches nothing drops back to automatic selection;
// any remaining failure leaves the host default in place.
func (a *App) pinInputDevice() {
	preferred := a.cfg.Audio.InputDevice
	device, err := pipeline.SelectInputDevice(a.providers.Mic, preferred)
	if err != nil && preferred != "" {
		slog.Warn("configured input device not found, selecting automatically",
			"input_device", preferred, "err", err)
		device, err = pipeline.SelectInputDevice(a.providers.Mic, "")
	}
	if err != nil {
		slog.Warn("input device selection failed, using host default", "err", err)
		return
	}

	if err := a.providers.Mic.UseDevice(device.Index); err != nil {
		slog.Warn("could not pin input device, using host default",
			"name", device.Name, "err", err)
		return
	}
	slog.Info("input device pinned",
		"name", device.Name,
		"index", device.Index,
		"sample_rate", device.DefaultSampleRate,
		"channels", device.MaxInputChannels,
	)
}

// consumeCommands drains the queue until ctx is cancelled. Wake-word commands
// get a generated reply spoken through the output controller; everything else
// is logged and discarded, the filtering policy the loop deliberately leaves
// to its consumer.
func (a *App) consumeCommands(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		cmd, ok := a.queue.Pop(ctx, popTimeout)
		if !ok {
			continue
		}

		if !cmd.IsWakeWord {
			slog.Debug("dropping non-wake command",
				"text", cmd.Text,
				"language", cmd.Language,
			)
			continue
		}

		a.handleWakeCommand(ctx, cmd)
	}
}

// handleWakeCommand generates and speaks the reply to one wake command under
// its own trace span.
func (a *App) handleWakeCommand(ctx context.Context, cmd pipeline.VoiceCommand) {
	ctx, span := observe.StartSpan(ctx, "command.handle",
		trace.WithAttributes(
			attribute.String("wake.phrase", cmd.MatchedPhrase),
			attribute.String("language", cmd.Language),
		),
	)
	defer span.End()

	log := observe.Logger(ctx)
	log.Info("handling wake command",
		"text", cmd.Text,
		"phrase", cmd.MatchedPhrase,
		"similarity", cmd.Similarity,
	)

	reply, err := a.responder.Reply(ctx, cmd.Text)
	if err != nil {
		log.Error("response generation failed", "err", err)
		return
	}

	outcome := a.speaker.Speak(ctx, reply, false)
	a.observer.SpeechOutcome(ctx, outcome.String())
	span.SetAttributes(attribute.String("speech.outcome", outcome.String()))
	if outcome != pipeline.SpeakStarted {
		log.Warn("reply not spoken", "outcome", outcome.String())
	}
}

// serveHTTP runs the health and metrics endpoints until ctx is cancelled.
func (a *App) serveHTTP(ctx context.Context) error {
	mux := http.NewServeMux()

	handler := health.New(
		health.Microphone(a.providers.Mic),
		health.Pipeline(a.loop, a.stats, a.cfg.Audio.MaxRetries),
		health.Transcribers(a.transcriber),
	)
	handler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Span + correlation ID per request; latency lands in the OTel
	// histogram when the default metrics observer is in place.
	metrics, _ := a.observer.(*observe.Metrics)

	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if tls := a.cfg.Server.TLS; tls != nil {
			errCh <- srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Cut any playback first, then wait for the goroutine to drain.
		if err := a.speaker.Stop(); err != nil {
			slog.Warn("speaker stop error", "err", err)
		}
		a.speaker.Wait()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
