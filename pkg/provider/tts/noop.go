package tts

import (
	"context"
	"log/slog"
)

// Noop is the fallback Engine selected when no speech engine could be
// constructed. Speech output degrades to a log line per utterance so the
// rest of the pipeline keeps functioning.
type Noop struct{}

// Speak logs the text instead of playing it.
func (Noop) Speak(_ context.Context, text string) error {
	slog.Info("speech engine unavailable, printing instead", "text", text)
	return nil
}

// Stop is a no-op.
func (Noop) Stop() error { return nil }

var _ Engine = Noop{}
