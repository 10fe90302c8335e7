// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (a cloud API or a local
// model) behind a single blocking call: one captured utterance in, one
// transcript out. Recognition across multiple candidate languages is the
// recognition engine's concern, not the provider's — a provider transcribes
// against exactly the language it is given.
//
// Implementations must be safe for concurrent use and must honour ctx
// cancellation; the caller always supplies a deadline.
package stt

import (
	"context"
	"errors"
	"strings"

	"github.com/lberthe/gideon/pkg/audio"
)

// Failure kinds surfaced by Transcribe. The caller's backoff policy differs
// per kind, so providers must wrap one of these sentinels rather than
// returning bare errors.
var (
	// ErrNoSpeech means the utterance contained silence until the timeout.
	// This is the expected common case during idle listening, not a fault.
	ErrNoSpeech = errors.New("stt: no speech detected")

	// ErrNotUnderstood means audio was captured but the provider could not
	// produce a transcript for the requested language.
	ErrNotUnderstood = errors.New("stt: speech not understood")

	// ErrUnavailable means the transcription service itself failed —
	// network, auth, or backend fault — rather than the audio content.
	ErrUnavailable = errors.New("stt: service unavailable")
)

// Transcript is the result of a successful transcription.
type Transcript struct {
	// Text is the recognised utterance text, whitespace-trimmed, non-empty.
	Text string

	// Confidence is the provider's confidence in [0, 1]. Providers that do
	// not report one fix it at 1.0.
	Confidence float64

	// Language is the BCP-47 tag the transcription was performed against.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts one utterance to text against the given BCP-47
	// language tag. It blocks until the result is available or ctx expires,
	// and returns an error wrapping exactly one of ErrNoSpeech,
	// ErrNotUnderstood, or ErrUnavailable on failure.
	Transcribe(ctx context.Context, utt audio.Utterance, language string) (Transcript, error)
}

// BaseLanguage reduces a BCP-47 tag to its primary subtag ("en-US" → "en").
// Several backends accept only ISO 639-1 codes.
func BaseLanguage(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}
