// Package elevenlabs provides a speech output engine backed by the ElevenLabs
// HTTP synthesis API. Each Speak issues one POST /v1/text-to-speech/{voice}
// request with a raw PCM output format, so no container decoding is needed
// before playback. It implements the tts.Engine interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Engine = (*Engine)(nil)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_flash_v2_5"
	defaultTimeout = 30 * time.Second

	// outputFormat requests raw 16-bit little-endian mono PCM at 16 kHz,
	// matching the capture pipeline's native rate.
	outputFormat = "pcm_16000"
	outputRate   = 16000

	ttsEndpointFmt = "/v1/text-to-speech/%s"
	voicesEndpoint = "/v1/voices"

	// maxResponseBytes caps the PCM body read from the API.
	maxResponseBytes = 32 << 20
)

// Option is a functional option for configuring the ElevenLabs Engine.
type Option func(*Engine)

// WithModel sets the ElevenLabs model ID (e.g. "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithBaseURL overrides the API base URL. Intended for tests against an
// httptest server.
func WithBaseURL(base string) Option {
	return func(e *Engine) {
		e.baseURL = strings.TrimRight(base, "/")
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.httpClient.Timeout = d
	}
}

// Engine implements tts.Engine backed by the ElevenLabs synthesis API.
type Engine struct {
	apiKey     string
	voiceID    string
	model      string
	baseURL    string
	httpClient *http.Client
	playback   tts.Playback
}

// New creates an ElevenLabs Engine. apiKey and voiceID must be non-empty and
// playback must be non-nil.
func New(apiKey, voiceID string, playback tts.Playback, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	if playback == nil {
		return nil, errors.New("elevenlabs: playback must not be nil")
	}
	e := &Engine{
		apiKey:   apiKey,
		voiceID:  voiceID,
		model:    defaultModel,
		baseURL:  defaultBaseURL,
		playback: playback,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// synthesisRequest is the JSON body sent to POST /v1/text-to-speech/{voice}.
type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Speak synthesises text and plays it on the configured playback device. It
// blocks until playback finishes. A playback interrupted via Stop or ctx
// cancellation is not an error.
func (e *Engine) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	utt, err := e.synthesize(ctx, text)
	if err != nil {
		return err
	}
	return e.playback.Play(ctx, utt)
}

// Stop interrupts any in-flight playback.
func (e *Engine) Stop() error {
	e.playback.Stop()
	return nil
}

// synthesize performs a single synthesis call and returns the decoded PCM.
func (e *Engine) synthesize(ctx context.Context, text string) (audio.Utterance, error) {
	body := synthesisRequest{
		Text:    text,
		ModelID: e.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("elevenlabs: marshal synthesis request: %w", err)
	}

	reqURL := e.baseURL + fmt.Sprintf(ttsEndpointFmt, e.voiceID) + "?output_format=" + outputFormat
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("elevenlabs: create synthesis request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("elevenlabs: POST synthesis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audio.Utterance{}, fmt.Errorf("elevenlabs: synthesis returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("elevenlabs: read PCM response: %w", err)
	}
	if len(raw) < 2 {
		return audio.Utterance{}, errors.New("elevenlabs: synthesis returned no audio")
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return audio.Utterance{
		PCM:        samples,
		SampleRate: outputRate,
		Channels:   1,
		CapturedAt: time.Now(),
	}, nil
}

// Ping checks that the API key is valid by listing voices. It is used by
// readiness probes at startup.
func (e *Engine) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+voicesEndpoint, nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: create voices request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs: GET %s: %w", voicesEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("elevenlabs: GET %s returned status %d", voicesEndpoint, resp.StatusCode)
	}
	return nil
}
