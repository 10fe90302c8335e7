package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/stt"
)

// ErrAllTranscribersFailed is returned when every provider in a
// [TranscriberGroup] fails or has an open circuit breaker.
var ErrAllTranscribersFailed = errors.New("all transcription providers failed")

// benignSTTError reports whether err is a recognition outcome rather than a
// provider fault. Silence and not-understood audio come from a healthy
// backend and must not trip its breaker.
func benignSTTError(err error) bool {
	return errors.Is(err, stt.ErrNoSpeech) || errors.Is(err, stt.ErrNotUnderstood)
}

// transcriberEntry pairs a provider with its dedicated circuit breaker.
type transcriberEntry struct {
	name     string
	provider stt.Provider
	breaker  *CircuitBreaker
}

// TranscriberGroup is an stt.Provider that fails over between a primary and
// fallback providers, each guarded by its own circuit breaker. Entries are
// tried in registration order; open breakers are skipped.
//
// Recognition outcomes short-circuit the group: stt.ErrNoSpeech and
// stt.ErrNotUnderstood are returned from the first provider that produced
// them, since silence or garbled audio will not transcribe any better on a
// different backend.
type TranscriberGroup struct {
	entries []transcriberEntry
	cfg     BreakerConfig
	logger  *slog.Logger
}

// TranscriberGroupOption is a functional option for configuring a group.
type TranscriberGroupOption func(*TranscriberGroup)

// WithGroupLogger sets the logger. Defaults to slog.Default.
func WithGroupLogger(l *slog.Logger) TranscriberGroupOption {
	return func(g *TranscriberGroup) {
		g.logger = l
	}
}

// NewTranscriberGroup creates a group with primary as the first entry.
// breakerCfg is the per-entry breaker template; its Name and Benign fields
// are set per entry.
func NewTranscriberGroup(primaryName string, primary stt.Provider, breakerCfg BreakerConfig, opts ...TranscriberGroupOption) *TranscriberGroup {
	g := &TranscriberGroup{
		cfg:    breakerCfg,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	g.add(primaryName, primary)
	return g
}

// AddFallback appends a fallback provider, tried after all earlier entries.
func (g *TranscriberGroup) AddFallback(name string, provider stt.Provider) {
	g.add(name, provider)
}

func (g *TranscriberGroup) add(name string, provider stt.Provider) {
	cfg := g.cfg
	cfg.Name = name
	cfg.Benign = benignSTTError
	g.entries = append(g.entries, transcriberEntry{
		name:     name,
		provider: provider,
		breaker:  NewCircuitBreaker(cfg),
	})
}

// Transcribe runs the utterance through the first healthy provider. Provider
// faults fall through to the next entry; recognition outcomes return
// immediately. When every entry fails the result wraps both
// [ErrAllTranscribersFailed] and stt.ErrUnavailable so callers can keep
// matching on the stt taxonomy.
func (g *TranscriberGroup) Transcribe(ctx context.Context, utt audio.Utterance, language string) (stt.Transcript, error) {
	var (
		result  stt.Transcript
		lastErr error
	)

	for i := range g.entries {
		entry := &g.entries[i]
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = entry.provider.Transcribe(ctx, utt, language)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		if benignSTTError(err) {
			return stt.Transcript{}, err
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			g.logger.Debug("skipping transcription provider, circuit open", "provider", entry.name)
		} else {
			g.logger.Warn("transcription provider failed, trying next",
				"provider", entry.name,
				"error", err,
			)
		}
		if ctx.Err() != nil {
			return stt.Transcript{}, ctx.Err()
		}
	}

	return stt.Transcript{}, fmt.Errorf("%w: %w: %w", stt.ErrUnavailable, ErrAllTranscribersFailed, lastErr)
}

// States returns the breaker state per provider name, for health reporting.
func (g *TranscriberGroup) States() map[string]State {
	states := make(map[string]State, len(g.entries))
	for i := range g.entries {
		states[g.entries[i].name] = g.entries[i].breaker.State()
	}
	return states
}

var _ stt.Provider = (*TranscriberGroup)(nil)
