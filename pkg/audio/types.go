// Package audio provides the PCM utterance type shared by the capture,
// recognition, and playback layers, together with the signal-analysis
// helpers (RMS energy, spectral flux) used for noise calibration and
// utterance endpointing, and WAV encode/decode helpers for providers that
// exchange audio over HTTP.
package audio

import "time"

// Utterance is one bounded span of captured audio between silence/timeout
// boundaries. It is immutable after capture; ownership passes from the
// microphone source to the recognition engine.
type Utterance struct {
	// PCM holds signed 16-bit little-endian samples, interleaved when
	// Channels > 1.
	PCM []int16

	// SampleRate is the capture rate in Hz.
	SampleRate int

	// Channels is the number of interleaved channels. Capture is mono in
	// practice; the field exists so providers can verify their input.
	Channels int

	// CapturedAt records when the utterance capture completed.
	CapturedAt time.Time
}

// Duration returns the playback duration of the utterance.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 || u.Channels <= 0 {
		return 0
	}
	frames := len(u.PCM) / u.Channels
	return time.Duration(frames) * time.Second / time.Duration(u.SampleRate)
}

// Empty reports whether the utterance carries no samples.
func (u Utterance) Empty() bool {
	return len(u.PCM) == 0
}
