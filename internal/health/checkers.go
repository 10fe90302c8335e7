package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/lberthe/gideon/internal/pipeline"
	"github.com/lberthe/gideon/internal/resilience"
	"github.com/lberthe/gideon/pkg/provider/mic"
)

// Microphone returns a checker that fails when no input-capable device is
// visible to the host. A nil source reports the pipeline's degraded mode.
func Microphone(src mic.Source) Checker {
	return Checker{
		Name: "microphone",
		Check: func(context.Context) error {
			if src == nil {
				return errors.New("no capture hardware configured")
			}
			devices, err := src.Devices()
			if err != nil {
				return fmt.Errorf("enumerate devices: %w", err)
			}
			for _, d := range devices {
				if d.MaxInputChannels > 0 {
					return nil
				}
			}
			return errors.New("no input-capable devices present")
		},
	}
}

// Pipeline returns a checker that fails while the listening loop is degraded
// or stuck in a failure streak at or past maxConsecutive.
func Pipeline(loop *pipeline.Loop, stats *pipeline.Stats, maxConsecutive int) Checker {
	return Checker{
		Name: "pipeline",
		Check: func(context.Context) error {
			if loop.Degraded() {
				return errors.New("listening loop is degraded, no capture hardware")
			}
			if n := stats.Snapshot().ConsecutiveFailures; n >= maxConsecutive {
				return fmt.Errorf("%d consecutive recognition failures", n)
			}
			return nil
		},
	}
}

// Transcribers returns a checker that fails when every provider breaker in
// the group is open. A single healthy fallback keeps recognition available.
func Transcribers(group *resilience.TranscriberGroup) Checker {
	return Checker{
		Name: "transcribers",
		Check: func(context.Context) error {
			states := group.States()
			for _, s := range states {
				if s != resilience.StateOpen {
					return nil
				}
			}
			return fmt.Errorf("all %d transcription provider breakers are open", len(states))
		},
	}
}
