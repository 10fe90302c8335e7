package pipeline

import (
	"fmt"
	"strings"

	"github.com/lberthe/gideon/pkg/provider/mic"
)

// SelectInputDevice picks the capture device for the session. When preferred
// is non-empty, only devices whose name contains it (case-insensitively) are
// considered and a miss is an error, so a misspelled config value surfaces
// instead of silently capturing from the wrong microphone. Among the
// candidates the highest default sample rate wins. On enumeration failure or
// an empty candidate list it returns an error; callers fall back to the host
// default device and report, rather than fail.
func SelectInputDevice(src mic.Source, preferred string) (mic.Device, error) {
	devices, err := src.Devices()
	if err != nil {
		return mic.Device{}, fmt.Errorf("enumerate input devices: %w", err)
	}

	preferred = strings.ToLower(strings.TrimSpace(preferred))

	var (
		best  mic.Device
		found bool
	)
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		if preferred != "" && !strings.Contains(strings.ToLower(d.Name), preferred) {
			continue
		}
		if !found || d.DefaultSampleRate > best.DefaultSampleRate {
			best = d
			found = true
		}
	}
	if !found {
		if preferred != "" {
			return mic.Device{}, fmt.Errorf("no input device matching %q", preferred)
		}
		return mic.Device{}, fmt.Errorf("no input-capable audio devices found")
	}
	return best, nil
}
