package stt

import (
	"context"

	"github.com/lberthe/gideon/pkg/audio"
)

// Unavailable is the fallback Provider selected when no real backend could
// be constructed. Every call reports ErrUnavailable so the pipeline degrades
// to an idle loop that advertises its own unavailability instead of
// crashing the process.
type Unavailable struct{}

// Transcribe always returns ErrUnavailable.
func (Unavailable) Transcribe(context.Context, audio.Utterance, string) (Transcript, error) {
	return Transcript{}, ErrUnavailable
}

var _ Provider = Unavailable{}
