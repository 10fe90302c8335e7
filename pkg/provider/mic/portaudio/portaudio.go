// Package portaudio implements mic.Source on top of the PortAudio host API.
//
// Capture performs energy-threshold endpointing: it waits for a frame whose
// RMS crosses the configured threshold (confirmed by a spectral flux rise so
// steady background hum does not trigger it), then records until the signal
// stays below the threshold for the pause duration or the phrase timeout
// expires.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/mic"
)

// Compile-time interface assertion.
var _ mic.Source = (*Source)(nil)

const (
	// frameSamples is the number of samples read from the device per frame.
	// At 16 kHz this is 64 ms, short enough for responsive endpointing.
	frameSamples = 1024

	// fluxOnsetRatio is how much the spectral flux must rise relative to the
	// running baseline before a loud frame counts as a speech onset.
	fluxOnsetRatio = 1.75
)

// Option is a functional option for configuring a Source.
type Option func(*Source)

// WithDevice selects a specific input device by index instead of the host
// default.
func WithDevice(index int) Option {
	return func(s *Source) {
		s.deviceIndex = index
	}
}

// Source implements mic.Source using a PortAudio input stream.
type Source struct {
	sampleRate int
	channels   int

	mu          sync.Mutex
	deviceIndex int // -1 = host default
	closed      bool
}

// New initialises the PortAudio host and returns a Source capturing at the
// given sample rate and channel count. Close must be called to release the
// host.
func New(sampleRate, channels int, opts ...Option) (*Source, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("portaudio: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("portaudio: invalid channel count %d", channels)
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	s := &Source{
		sampleRate:  sampleRate,
		channels:    channels,
		deviceIndex: -1,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Devices enumerates the host's input-capable devices.
func (s *Source) Devices() ([]mic.Device, error) {
	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	devices := make([]mic.Device, 0, len(infos))
	for i, info := range infos {
		if info.MaxInputChannels <= 0 {
			continue
		}
		devices = append(devices, mic.Device{
			Index:             i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		})
	}
	return devices, nil
}

// UseDevice pins subsequent captures to the given host device index. The
// index must refer to an input-capable device; a negative index restores the
// host default.
func (s *Source) UseDevice(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("portaudio: source is closed")
	}
	if index >= 0 {
		infos, err := pa.Devices()
		if err != nil {
			return fmt.Errorf("portaudio: list devices: %w", err)
		}
		if index >= len(infos) {
			return fmt.Errorf("portaudio: device index %d out of range", index)
		}
		if infos[index].MaxInputChannels <= 0 {
			return fmt.Errorf("portaudio: device %q has no input channels", infos[index].Name)
		}
	}
	s.deviceIndex = index
	return nil
}

// Capture records one utterance. It returns mic.ErrNoSpeech when nothing
// crosses the energy threshold before cfg.ListenTimeout.
func (s *Source) Capture(ctx context.Context, cfg mic.CaptureConfig) (audio.Utterance, error) {
	stream, frame, err := s.openStream()
	if err != nil {
		return audio.Utterance{}, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return audio.Utterance{}, fmt.Errorf("portaudio: start stream: %w", err)
	}
	defer stream.Stop()

	var (
		captured   []int16
		speaking   bool
		quietSince time.Time
		baseFlux   float64
		started    = time.Now()
		capturedAt time.Time
		vad        = audio.NewFluxAnalyzer()
	)

	for {
		if err := ctx.Err(); err != nil {
			return audio.Utterance{}, err
		}

		if err := stream.Read(); err != nil {
			return audio.Utterance{}, fmt.Errorf("portaudio: read stream: %w", err)
		}

		rms := audio.RMS(frame)
		flux := vad.Flux(frame)

		if !speaking {
			loud := rms >= cfg.EnergyThreshold
			onset := baseFlux == 0 || flux >= baseFlux*fluxOnsetRatio
			if loud && onset {
				speaking = true
				capturedAt = time.Now()
				captured = append(captured, frame...)
				continue
			}
			// Track the noise floor while idle.
			baseFlux = (baseFlux + flux) / 2
			if time.Since(started) >= cfg.ListenTimeout {
				return audio.Utterance{}, mic.ErrNoSpeech
			}
			continue
		}

		captured = append(captured, frame...)

		if rms < cfg.EnergyThreshold {
			if quietSince.IsZero() {
				quietSince = time.Now()
			} else if time.Since(quietSince) >= cfg.PauseThreshold {
				break
			}
		} else {
			quietSince = time.Time{}
		}

		if time.Since(capturedAt) >= cfg.PhraseTimeout {
			break
		}
	}

	return audio.Utterance{
		PCM:        captured,
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		CapturedAt: capturedAt,
	}, nil
}

// SampleAmbient records raw audio for d regardless of energy levels.
func (s *Source) SampleAmbient(ctx context.Context, d time.Duration) (audio.Utterance, error) {
	stream, frame, err := s.openStream()
	if err != nil {
		return audio.Utterance{}, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return audio.Utterance{}, fmt.Errorf("portaudio: start stream: %w", err)
	}
	defer stream.Stop()

	want := int(float64(s.sampleRate*s.channels) * d.Seconds())
	captured := make([]int16, 0, want)
	capturedAt := time.Now()

	for len(captured) < want {
		if err := ctx.Err(); err != nil {
			return audio.Utterance{}, err
		}
		if err := stream.Read(); err != nil {
			return audio.Utterance{}, fmt.Errorf("portaudio: read stream: %w", err)
		}
		captured = append(captured, frame...)
	}

	return audio.Utterance{
		PCM:        captured[:want],
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		CapturedAt: capturedAt,
	}, nil
}

// openStream opens an input stream on the configured device, returning the
// stream and the frame buffer it reads into.
func (s *Source) openStream() (*pa.Stream, []int16, error) {
	s.mu.Lock()
	closed := s.closed
	deviceIndex := s.deviceIndex
	s.mu.Unlock()
	if closed {
		return nil, nil, errors.New("portaudio: source is closed")
	}

	frame := make([]int16, frameSamples*s.channels)

	if deviceIndex < 0 {
		stream, err := pa.OpenDefaultStream(s.channels, 0, float64(s.sampleRate), frameSamples, frame)
		if err != nil {
			return nil, nil, fmt.Errorf("portaudio: open default stream: %w", err)
		}
		return stream, frame, nil
	}

	infos, err := pa.Devices()
	if err != nil {
		return nil, nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	if deviceIndex >= len(infos) {
		return nil, nil, fmt.Errorf("portaudio: device index %d out of range", deviceIndex)
	}
	params := pa.LowLatencyParameters(infos[deviceIndex], nil)
	params.Input.Channels = s.channels
	params.SampleRate = float64(s.sampleRate)
	params.FramesPerBuffer = frameSamples

	stream, err := pa.OpenStream(params, frame)
	if err != nil {
		return nil, nil, fmt.Errorf("portaudio: open stream on device %d: %w", deviceIndex, err)
	}
	return stream, frame, nil
}

// Close terminates the PortAudio host. The Source is unusable afterwards.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}
