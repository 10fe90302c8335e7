// Package pipeline implements the voice I/O pipeline: adaptive noise
// calibration, microphone capture, multi-language recognition, wake word
// scoring, the producer/consumer command queue, serialized speech output and
// pipeline statistics.
//
// One background goroutine runs the [Loop]; the [CommandQueue] is the only
// hand-off point between that goroutine and consumers. All other shared state
// in this package is either owned by the loop or guarded internally.
package pipeline

import "time"

// VoiceCommand is one recognized utterance handed from the listening loop to
// the command consumer. It is immutable after creation and consumed exactly
// once.
type VoiceCommand struct {
	// Text is the recognized transcript.
	Text string

	// Confidence is the recognition confidence in [0, 1]. Providers that
	// report no confidence yield 1.0.
	Confidence float64

	// CapturedAt is when the utterance was captured from the microphone.
	CapturedAt time.Time

	// Language is the language code that produced the transcript.
	Language string

	// IsWakeWord reports whether the transcript matched a wake phrase.
	IsWakeWord bool

	// MatchedPhrase is the wake phrase that matched, empty when IsWakeWord
	// is false.
	MatchedPhrase string

	// Similarity is the wake match score in [0, 1]. Exact substring hits
	// score 1.0.
	Similarity float64
}
