// Package openai provides an STT provider backed by the OpenAI audio
// transcription API (Whisper). Utterances are encoded as WAV and submitted
// as one batch request per transcription.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/stt"
)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider implements stt.Provider using the OpenAI transcription API.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs an OpenAI STT Provider. model defaults to whisper-1 when
// empty.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.timeout))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

// Transcribe encodes the utterance as WAV and submits it to the
// transcription endpoint. API failures wrap stt.ErrUnavailable; an empty
// transcript wraps stt.ErrNotUnderstood. The API reports no confidence, so
// it is fixed at 1.0.
func (p *Provider) Transcribe(ctx context.Context, utt audio.Utterance, language string) (stt.Transcript, error) {
	wavData, err := audio.EncodeWAV(utt)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai: encode utterance: %w", errors.Join(stt.ErrUnavailable, err))
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		Model:    oai.AudioModel(p.model),
		File:     oai.File(bytes.NewReader(wavData), "utterance.wav", "audio/wav"),
		Language: oai.String(stt.BaseLanguage(language)),
	})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai: transcription request: %w", errors.Join(stt.ErrUnavailable, err))
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return stt.Transcript{}, fmt.Errorf("openai: empty transcript: %w", stt.ErrNotUnderstood)
	}

	return stt.Transcript{Text: text, Confidence: 1.0, Language: language}, nil
}

var _ stt.Provider = (*Provider)(nil)
