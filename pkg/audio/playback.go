package audio

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// playbackChunk is the number of frames written to the output stream per
// iteration. Small enough that Stop and context cancellation are observed
// with low latency.
const playbackChunk = 2048

// Player renders utterances to the default output device via PortAudio.
// Play blocks for the duration of playback; Stop aborts the current
// playback from another goroutine. A Player services one playback at a
// time — serialisation across callers is the speech output controller's
// job, not the Player's.
type Player struct {
	interrupted atomic.Bool
}

// NewPlayer initialises the PortAudio host API and returns a ready Player.
// Call Close to release the host API.
func NewPlayer() (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: initialise portaudio: %w", err)
	}
	return &Player{}, nil
}

// Close terminates the PortAudio host API.
func (p *Player) Close() error {
	return portaudio.Terminate()
}

// Play writes the utterance to the default output device and blocks until
// playback completes, ctx is cancelled, or Stop is called. A stopped or
// cancelled playback returns nil — cutting speech short is a normal
// outcome, not an error.
func (p *Player) Play(ctx context.Context, u Utterance) error {
	if u.Empty() {
		return nil
	}
	p.interrupted.Store(false)

	out := make([]int16, playbackChunk*u.Channels)
	stream, err := portaudio.OpenDefaultStream(0, u.Channels, float64(u.SampleRate), playbackChunk, out)
	if err != nil {
		return fmt.Errorf("audio: open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("audio: start output stream: %w", err)
	}
	defer stream.Stop()

	pcm := u.PCM
	for len(pcm) > 0 {
		if p.interrupted.Load() || ctx.Err() != nil {
			return nil
		}

		n := copy(out, pcm)
		pcm = pcm[n:]
		// Zero-pad the final partial chunk.
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("audio: write output stream: %w", err)
		}
	}
	return nil
}

// Stop aborts the in-flight Play call, if any. Safe to call concurrently
// with Play and when nothing is playing.
func (p *Player) Stop() {
	p.interrupted.Store(true)
}
