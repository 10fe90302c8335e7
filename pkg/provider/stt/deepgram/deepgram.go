// Package deepgram provides a Deepgram-backed STT provider. Deepgram's API
// is a streaming WebSocket, so Transcribe opens a short-lived connection,
// pushes the whole utterance, requests a flush, and drains the final
// results into a single batch transcript.
package deepgram

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"

	// chunkSamples is the number of int16 samples per binary frame sent to
	// the socket. ~256ms at 16kHz mono.
	chunkSamples = 4096
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithEndpoint overrides the WebSocket endpoint. Used in tests against a
// local fake server.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	endpoint string
}

// New creates a Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// deepgramResponse is the JSON structure of a Deepgram Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Transcribe sends the utterance over a fresh streaming connection and
// collects the final transcript segments. Connection or protocol failures
// wrap stt.ErrUnavailable; a clean session that yields no text wraps
// stt.ErrNotUnderstood.
func (p *Provider) Transcribe(ctx context.Context, utt audio.Utterance, language string) (stt.Transcript, error) {
	wsURL, err := p.buildURL(utt, language)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", errors.Join(stt.ErrUnavailable, err))
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", errors.Join(stt.ErrUnavailable, err))
	}
	defer conn.Close(websocket.StatusNormalClosure, "transcription complete")

	if err := p.sendAudio(ctx, conn, utt); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: send audio: %w", errors.Join(stt.ErrUnavailable, err))
	}

	text, confidence, err := p.collectFinals(ctx, conn)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: read results: %w", errors.Join(stt.ErrUnavailable, err))
	}
	if text == "" {
		return stt.Transcript{}, fmt.Errorf("deepgram: empty transcript: %w", stt.ErrNotUnderstood)
	}

	return stt.Transcript{Text: text, Confidence: confidence, Language: language}, nil
}

// buildURL constructs the streaming endpoint URL for one utterance.
func (p *Provider) buildURL(utt audio.Utterance, language string) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", stt.BaseLanguage(language))
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(utt.SampleRate))
	q.Set("channels", strconv.Itoa(utt.Channels))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sendAudio writes the PCM as binary frames followed by a CloseStream
// control message so the server flushes its final results.
func (p *Provider) sendAudio(ctx context.Context, conn *websocket.Conn, utt audio.Utterance) error {
	pcm := utt.PCM
	for len(pcm) > 0 {
		n := min(len(pcm), chunkSamples)
		if err := conn.Write(ctx, websocket.MessageBinary, pcmBytes(pcm[:n])); err != nil {
			return err
		}
		pcm = pcm[n:]
	}
	return conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
}

// collectFinals drains Results events until the server closes the stream,
// concatenating is_final segments.
func (p *Provider) collectFinals(ctx context.Context, conn *websocket.Conn) (string, float64, error) {
	var (
		parts      []string
		confidence = 1.0
	)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// A normal close after CloseStream ends the result stream.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			if ctx.Err() != nil {
				return "", 0, ctx.Err()
			}
			return "", 0, err
		}

		var resp deepgramResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue // ignore non-Results frames (metadata, warnings)
		}
		if !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
			continue
		}
		alt := resp.Channel.Alternatives[0]
		if t := strings.TrimSpace(alt.Transcript); t != "" {
			parts = append(parts, t)
			if alt.Confidence > 0 {
				confidence = alt.Confidence
			}
		}
	}
	return strings.Join(parts, " "), confidence, nil
}

// pcmBytes serialises int16 samples as little-endian bytes, the layout the
// linear16 encoding expects.
func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

var _ stt.Provider = (*Provider)(nil)
