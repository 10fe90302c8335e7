// Package mic defines the microphone capture interface used by the listening
// pipeline, along with the device metadata returned by enumeration. Concrete
// implementations live in subpackages (portaudio for real hardware, mock for
// tests).
package mic

import (
	"context"
	"errors"
	"time"

	"github.com/lberthe/gideon/pkg/audio"
)

// ErrNoSpeech is returned by Capture when no utterance starts before the
// configured listen timeout elapses. It marks silence, not a device fault.
var ErrNoSpeech = errors.New("mic: no speech detected before timeout")

// Device describes one audio input device reported by the host.
type Device struct {
	// Index is the host API's device index, stable for the process lifetime.
	Index int

	// Name is the human-readable device name.
	Name string

	// MaxInputChannels is the number of input channels the device supports.
	// Zero means the device is output-only.
	MaxInputChannels int

	// DefaultSampleRate is the device's preferred sample rate in Hz.
	DefaultSampleRate float64
}

// CaptureConfig carries the per-capture tuning parameters. The energy
// threshold changes between captures as ambient noise calibration adjusts it,
// so it travels with each call rather than living on the Source.
type CaptureConfig struct {
	// ListenTimeout bounds how long Capture waits for speech to start.
	ListenTimeout time.Duration

	// PhraseTimeout bounds the total length of a single captured utterance.
	PhraseTimeout time.Duration

	// PauseThreshold is the silence duration that ends an utterance once
	// speech has started.
	PauseThreshold time.Duration

	// EnergyThreshold is the RMS level below which audio counts as silence.
	EnergyThreshold float64
}

// Source captures utterances from a microphone.
//
// Capture blocks until a complete utterance is recorded, ErrNoSpeech if the
// listen timeout expires first, or ctx is cancelled. Implementations must be
// safe for sequential reuse; the pipeline never calls Capture concurrently.
type Source interface {
	// Devices enumerates the input devices currently visible to the host.
	Devices() ([]Device, error)

	// UseDevice pins subsequent captures to the device with the given host
	// index, as reported by Devices. A negative index restores the host
	// default device.
	UseDevice(index int) error

	// Capture records one utterance using the given tuning parameters.
	Capture(ctx context.Context, cfg CaptureConfig) (audio.Utterance, error)

	// SampleAmbient records raw audio for the given duration regardless of
	// energy levels. Calibration uses it to measure the noise floor.
	SampleAmbient(ctx context.Context, d time.Duration) (audio.Utterance, error)

	// Close releases the underlying device.
	Close() error
}
