package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/stt"
)

// Recognizer attempts transcription of a captured utterance against an
// ordered list of languages. The first language yielding a non-empty
// transcript wins; there is no voting or merging across languages.
type Recognizer struct {
	provider  stt.Provider
	languages []string
	timeout   time.Duration
	logger    *slog.Logger
}

// RecognizerOption is a functional option for configuring a Recognizer.
type RecognizerOption func(*Recognizer)

// WithRecognizerLogger sets the logger. Defaults to slog.Default.
func WithRecognizerLogger(l *slog.Logger) RecognizerOption {
	return func(r *Recognizer) {
		r.logger = l
	}
}

// NewRecognizer returns a Recognizer trying languages in the given order
// with the per-language timeout applied to each transcription attempt.
func NewRecognizer(provider stt.Provider, languages []string, timeout time.Duration, opts ...RecognizerOption) (*Recognizer, error) {
	if provider == nil {
		return nil, errors.New("pipeline: stt provider must not be nil")
	}
	if len(languages) == 0 {
		return nil, errors.New("pipeline: at least one language is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &Recognizer{
		provider:  provider,
		languages: languages,
		timeout:   timeout,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Recognize transcribes utt, returning the first non-empty transcript across
// the configured languages. Failures surface as the stt sentinels:
// stt.ErrNoSpeech ends the attempt immediately (silence is silent in every
// language), stt.ErrNotUnderstood falls through to the next language, and
// stt.ErrUnavailable is returned only when no language produced anything
// better.
func (r *Recognizer) Recognize(ctx context.Context, utt audio.Utterance) (stt.Transcript, error) {
	if utt.Empty() {
		return stt.Transcript{}, stt.ErrNoSpeech
	}

	var (
		notUnderstood bool
		unavailable   []error
	)

	for _, lang := range r.languages {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		tr, err := r.provider.Transcribe(attemptCtx, utt, lang)
		cancel()

		switch {
		case err == nil && tr.Text != "":
			if tr.Confidence <= 0 {
				tr.Confidence = 1.0
			}
			if tr.Language == "" {
				tr.Language = lang
			}
			return tr, nil
		case err == nil:
			// Empty transcript without an error counts as not understood.
			notUnderstood = true
		case errors.Is(err, stt.ErrNoSpeech):
			return stt.Transcript{}, stt.ErrNoSpeech
		case errors.Is(err, stt.ErrNotUnderstood):
			notUnderstood = true
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return stt.Transcript{}, ctx.Err()
		default:
			r.logger.Warn("transcription attempt failed",
				"language", lang,
				"error", err,
			)
			unavailable = append(unavailable, fmt.Errorf("%s: %w", lang, err))
		}
	}

	if notUnderstood {
		return stt.Transcript{}, stt.ErrNotUnderstood
	}
	return stt.Transcript{}, fmt.Errorf("%w: %w", stt.ErrUnavailable, errors.Join(unavailable...))
}

// Languages returns the configured language order.
func (r *Recognizer) Languages() []string {
	out := make([]string, len(r.languages))
	copy(out, r.languages)
	return out
}
