// Package coqui provides a speech output engine backed by a locally-running
// standard Coqui TTS server (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed
// via GET /api/tts with URL query parameters; the WAV response is decoded and
// handed to the playback device. It implements the tts.Engine interface.
//
// Typical usage:
//
//	eng, err := coqui.New("http://localhost:5002", player,
//	    coqui.WithLanguage("en"),
//	    coqui.WithTimeout(15*time.Second),
//	)
//	err = eng.Speak(ctx, "good morning")
package coqui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Engine = (*Engine)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
	apiTTSEndpoint  = "/api/tts"
	detailsEndpoint = "/details"

	// maxResponseBytes caps the WAV body read from the server. A minute of
	// 48 kHz stereo 16-bit audio is ~11 MiB; anything beyond this is either
	// a misconfigured model or a broken server.
	maxResponseBytes = 32 << 20
)

// Option is a functional option for configuring a Coqui Engine.
type Option func(*Engine)

// WithLanguage sets the language_id query parameter sent to the TTS server
// (e.g. "en", "de", "fr"). Defaults to "en" if not set.
func WithLanguage(lang string) Option {
	return func(e *Engine) {
		e.language = lang
	}
}

// WithSpeaker sets the speaker_id query parameter for multi-speaker models.
// Single-speaker models need no speaker and this option can be omitted.
func WithSpeaker(id string) Option {
	return func(e *Engine) {
		e.speaker = id
	}
}

// WithTimeout sets the per-request HTTP timeout for calls to the TTS server.
// Defaults to 30 s if not set.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.httpClient.Timeout = d
	}
}

// Engine implements tts.Engine backed by a standard Coqui TTS server. One
// HTTP synthesis call is made per Speak; playback serialisation is the
// caller's concern.
type Engine struct {
	serverURL  string
	language   string
	speaker    string
	httpClient *http.Client
	playback   tts.Playback
}

// New creates a Coqui Engine targeting the TTS server at serverURL
// (e.g. "http://localhost:5002"). serverURL and playback must be non-nil.
func New(serverURL string, playback tts.Playback, opts ...Option) (*Engine, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	if playback == nil {
		return nil, errors.New("coqui: playback must not be nil")
	}
	e := &Engine{
		serverURL: strings.TrimRight(serverURL, "/"),
		language:  defaultLanguage,
		playback:  playback,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Speak synthesises text via GET /api/tts and plays the decoded audio on the
// configured playback device. It blocks until playback finishes. A playback
// interrupted via Stop or ctx cancellation is not an error.
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

// synthesize performs a single GET /api/tts request and decodes the WAV
// response.
func (e *Engine) synthesize(ctx context.Context, text string) (audio.Utterance, error) {
	params := url.Values{}
	params.Set("text", text)
	if e.speaker != "" {
		params.Set("speaker_id", e.speaker)
	}
	if e.language != "" {
		params.Set("language_id", e.language)
	}

	reqURL := e.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audio.Utterance{}, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}

	wavData, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("coqui: read WAV response: %w", err)
	}

	utt, err := audio.DecodeWAV(wavData)
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("coqui: decode WAV response: %w", err)
	}
	return utt, nil
}

// detailsResponse is the JSON body returned by GET /details. Speakers is nil
// for single-speaker models.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// Ping checks that the TTS server is reachable by fetching GET /details. It
// is used by readiness probes at startup.
func (e *Engine) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.serverURL+detailsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("coqui: create details request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coqui: GET %s: %w", detailsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coqui: GET %s returned status %d", detailsEndpoint, resp.StatusCode)
	}

	var details detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return fmt.Errorf("coqui: decode details response: %w", err)
	}
	return nil
}
