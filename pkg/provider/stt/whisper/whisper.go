// Package whisper provides a local STT provider backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// The model is loaded once at construction and shared across transcriptions;
// each Transcribe call creates its own whisper context, which is the unit of
// thread safety in whisper.cpp.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/stt"
)

// Provider implements stt.Provider using whisper.cpp, eliminating network
// dependency entirely. Inference cost scales with utterance length, so the
// caller's per-language timeout still applies.
type Provider struct {
	model whisperlib.Model
}

// New creates a Provider that loads the whisper.cpp model from modelPath.
// The caller must call Close when the provider is no longer needed.
func New(modelPath string) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	return &Provider{model: model}, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference over the utterance. Model failures
// wrap stt.ErrUnavailable; inference that yields no text wraps
// stt.ErrNotUnderstood.
//
// whisper.cpp has no mid-inference cancellation hook, so ctx is checked
// before inference starts and again before the result is returned.
func (p *Provider) Transcribe(ctx context.Context, utt audio.Utterance, language string) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", errors.Join(stt.ErrUnavailable, err))
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create context: %w", errors.Join(stt.ErrUnavailable, err))
	}

	if err := wctx.SetLanguage(stt.BaseLanguage(language)); err != nil {
		slog.Warn("whisper: failed to set language, using model default",
			"language", language, "error", err)
	}

	samples := float32Mono(utt)
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: process audio: %w", errors.Join(stt.ErrUnavailable, err))
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: read segment: %w", errors.Join(stt.ErrUnavailable, err))
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", errors.Join(stt.ErrUnavailable, err))
	}

	text := strings.Join(parts, " ")
	if text == "" {
		return stt.Transcript{}, fmt.Errorf("whisper: empty transcript: %w", stt.ErrNotUnderstood)
	}
	return stt.Transcript{Text: text, Confidence: 1.0, Language: language}, nil
}

// float32Mono converts the utterance to the float32 mono samples whisper.cpp
// expects, downmixing interleaved stereo by averaging channel pairs.
func float32Mono(u audio.Utterance) []float32 {
	if u.Channels <= 1 {
		out := make([]float32, len(u.PCM))
		for i, s := range u.PCM {
			out[i] = float32(s) / 32768.0
		}
		return out
	}

	frames := len(u.PCM) / u.Channels
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < u.Channels; c++ {
			sum += float32(u.PCM[f*u.Channels+c])
		}
		out[f] = sum / float32(u.Channels) / 32768.0
	}
	return out
}

var _ stt.Provider = (*Provider)(nil)
