// Package tts defines the Engine interface for text-to-speech backends.
//
// An engine turns text into audible speech and blocks for the duration of
// playback. Serialising concurrent speech requests (at most one utterance
// playing at a time) is the speech output controller's responsibility;
// engines only synthesise and play.
package tts

import (
	"context"

	"github.com/lberthe/gideon/pkg/audio"
)

// Engine is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use of Stop against an
// in-flight Speak.
type Engine interface {
	// Speak synthesises text and plays it on the output device, blocking
	// until playback finishes, Stop is called, or ctx expires. A playback
	// cut short by Stop or cancellation returns nil.
	Speak(ctx context.Context, text string) error

	// Stop aborts the current playback, if any. Safe to call when nothing
	// is playing.
	Stop() error
}

// Playback renders a synthesised utterance on an output device. It is the
// seam between HTTP synthesis providers and the PortAudio player, and the
// injection point for test doubles.
type Playback interface {
	Play(ctx context.Context, u audio.Utterance) error
	Stop()
}
