package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lberthe/gideon/pkg/provider/tts"
)

// SpeakOutcome reports how a Speak request was handled.
type SpeakOutcome int

const (
	// SpeakStarted means playback of the request began.
	SpeakStarted SpeakOutcome = iota

	// SpeakSkipped means the controller was busy and the non-priority
	// request was discarded. It is never queued.
	SpeakSkipped

	// SpeakPreempted means a priority request stopped the in-flight
	// utterance and began playing instead.
	SpeakPreempted
)

// String returns the lowercase outcome name used in logs and metrics.
func (o SpeakOutcome) String() string {
	switch o {
	case SpeakStarted:
		return "started"
	case SpeakSkipped:
		return "skipped"
	case SpeakPreempted:
		return "preempted"
	default:
		return "unknown"
	}
}

// preemptPoll is how often a priority Speak rechecks the speaking flag while
// waiting for the stopped playback to release it.
const preemptPoll = 5 * time.Millisecond

// Speaker serializes speech output so at most one utterance plays at a time.
// The check-and-set on the speaking flag is atomic; a race there would mean
// overlapping audio.
type Speaker struct {
	engine   tts.Engine
	logger   *slog.Logger
	speaking atomic.Bool
	wg       sync.WaitGroup
}

// SpeakerOption is a functional option for configuring a Speaker.
type SpeakerOption func(*Speaker)

// WithSpeakerLogger sets the logger. Defaults to slog.Default.
func WithSpeakerLogger(l *slog.Logger) SpeakerOption {
	return func(s *Speaker) {
		s.logger = l
	}
}

// NewSpeaker returns a Speaker playing through engine.
func NewSpeaker(engine tts.Engine, opts ...SpeakerOption) (*Speaker, error) {
	if engine == nil {
		return nil, errors.New("pipeline: tts engine must not be nil")
	}
	s := &Speaker{
		engine: engine,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Speak requests playback of text. Non-priority requests while busy return
// SpeakSkipped. Priority requests stop the current utterance and take over,
// returning SpeakPreempted. Playback itself runs on its own goroutine; the
// call returns as soon as the outcome is decided.
func (s *Speaker) Speak(ctx context.Context, text string, priority bool) SpeakOutcome {
	outcome := SpeakStarted
	if !s.speaking.CompareAndSwap(false, true) {
		if !priority {
			return SpeakSkipped
		}
		outcome = SpeakPreempted
		if err := s.engine.Stop(); err != nil {
			s.logger.Warn("stopping current utterance failed", "error", err)
		}
		// The stopped playback clears the flag on its way out; claim it as
		// soon as it does.
		for !s.speaking.CompareAndSwap(false, true) {
			select {
			case <-ctx.Done():
				return SpeakSkipped
			case <-time.After(preemptPoll):
			}
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.speaking.Store(false)
		if err := s.engine.Speak(ctx, text); err != nil {
			s.logger.Error("speech playback failed", "error", err)
		}
	}()
	return outcome
}

// IsSpeaking reports whether an utterance is currently playing.
func (s *Speaker) IsSpeaking() bool {
	return s.speaking.Load()
}

// Stop interrupts the current utterance, if any.
func (s *Speaker) Stop() error {
	return s.engine.Stop()
}

// Wait blocks until all launched playbacks have finished. Intended for
// shutdown and tests.
func (s *Speaker) Wait() {
	s.wg.Wait()
}
