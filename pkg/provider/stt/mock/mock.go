// Package mock provides a test double for the stt package interfaces.
//
// Configure the Provider with either a single canned Result/Err pair or a
// per-language Outcomes map, then inspect Calls to verify which languages
// were attempted and in what order.
package mock

import (
	"context"
	"sync"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/stt"
)

// Call records a single invocation of Provider.Transcribe.
type Call struct {
	// Language is the BCP-47 tag passed to Transcribe.
	Language string
	// Utterance is the utterance passed to Transcribe.
	Utterance audio.Utterance
}

// Outcome is the canned response for one language.
type Outcome struct {
	Transcript stt.Transcript
	Err        error
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Outcomes maps a language tag to its canned response. Languages not
	// present fall back to Result/Err.
	Outcomes map[string]Outcome

	// Result is the default transcript returned when Err is nil and no
	// per-language outcome matches.
	Result stt.Transcript

	// Err, if non-nil, is the default error returned by Transcribe.
	Err error

	// Calls records every Transcribe invocation in order.
	Calls []Call
}

// Transcribe records the call and returns the configured outcome.
func (p *Provider) Transcribe(_ context.Context, utt audio.Utterance, language string) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, Call{Language: language, Utterance: utt})

	if out, ok := p.Outcomes[language]; ok {
		return out.Transcript, out.Err
	}
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	res := p.Result
	if res.Language == "" {
		res.Language = language
	}
	return res, nil
}

// CallCount returns the number of recorded calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Languages returns the language tags of all recorded calls in order.
func (p *Provider) Languages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	langs := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		langs[i] = c.Language
	}
	return langs
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

var _ stt.Provider = (*Provider)(nil)
