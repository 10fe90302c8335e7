// Package mock provides a scripted test double for the mic package.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/mic"
)

// Capture is one scripted Capture result.
type Capture struct {
	Utterance audio.Utterance
	Err       error
}

// Source is a mock implementation of mic.Source. Captures are consumed in
// order; when the script runs out, ExhaustedErr (default mic.ErrNoSpeech) is
// returned so loop tests terminate deterministically.
type Source struct {
	mu sync.Mutex

	// Script is the ordered list of Capture results to return.
	Script []Capture

	// ExhaustedErr is returned once Script is consumed. Defaults to
	// mic.ErrNoSpeech.
	ExhaustedErr error

	// DeviceList is returned by Devices.
	DeviceList []mic.Device

	// DevicesErr, if non-nil, is returned by Devices.
	DevicesErr error

	// UseDeviceErr, if non-nil, is returned by UseDevice.
	UseDeviceErr error

	// UsedDevices records the index of every UseDevice call in order.
	UsedDevices []int

	// Ambient is returned by SampleAmbient.
	Ambient audio.Utterance

	// Configs records the CaptureConfig of every Capture call in order.
	Configs []mic.CaptureConfig

	// AmbientCalls counts SampleAmbient invocations.
	AmbientCalls int

	next   int
	closed bool
}

// Devices returns the configured device list.
func (s *Source) Devices() ([]mic.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DevicesErr != nil {
		return nil, s.DevicesErr
	}
	out := make([]mic.Device, len(s.DeviceList))
	copy(out, s.DeviceList)
	return out, nil
}

// UseDevice records the requested device index.
func (s *Source) UseDevice(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UseDeviceErr != nil {
		return s.UseDeviceErr
	}
	s.UsedDevices = append(s.UsedDevices, index)
	return nil
}

// LastUsedDevice returns the index of the most recent UseDevice call, or -1
// when none was made.
func (s *Source) LastUsedDevice() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.UsedDevices) == 0 {
		return -1
	}
	return s.UsedDevices[len(s.UsedDevices)-1]
}

// Capture returns the next scripted result, recording the config it was
// called with.
func (s *Source) Capture(ctx context.Context, cfg mic.CaptureConfig) (audio.Utterance, error) {
	if err := ctx.Err(); err != nil {
		return audio.Utterance{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Configs = append(s.Configs, cfg)
	if s.next >= len(s.Script) {
		err := s.ExhaustedErr
		if err == nil {
			err = mic.ErrNoSpeech
		}
		return audio.Utterance{}, err
	}
	c := s.Script[s.next]
	s.next++
	return c.Utterance, c.Err
}

// SampleAmbient returns the configured ambient utterance.
func (s *Source) SampleAmbient(ctx context.Context, d time.Duration) (audio.Utterance, error) {
	if err := ctx.Err(); err != nil {
		return audio.Utterance{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.AmbientCalls++
	_ = d
	return s.Ambient, nil
}

// Close marks the source closed.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CaptureCount returns how many Capture calls have been made.
func (s *Source) CaptureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Configs)
}

var _ mic.Source = (*Source)(nil)
