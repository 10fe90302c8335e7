// Package mock provides a test double for the tts package interfaces.
//
// The Engine records every spoken text and can be configured to block until
// released, which lets tests hold the speaking flag busy while a second
// request arrives.
package mock

import (
	"context"
	"sync"

	"github.com/lberthe/gideon/pkg/provider/tts"
)

// Engine is a mock implementation of tts.Engine.
type Engine struct {
	mu sync.Mutex

	// SpeakErr, if non-nil, is returned by every Speak call.
	SpeakErr error

	// Block, when non-nil, makes Speak wait until the channel is closed,
	// Stop is called, or ctx is cancelled before returning.
	Block chan struct{}

	// Spoken records the text of every Speak call in order.
	Spoken []string

	// StopCalls counts Stop invocations.
	StopCalls int

	stopOnce sync.Once
	stopped  chan struct{}
}

// Speak records the text and honours Block/SpeakErr.
func (e *Engine) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	e.Spoken = append(e.Spoken, text)
	block := e.Block
	stopped := e.stopChan()
	err := e.SpeakErr
	e.mu.Unlock()

	if err != nil {
		return err
	}
	if block != nil {
		select {
		case <-block:
		case <-stopped:
		case <-ctx.Done():
		}
	}
	return nil
}

// Stop records the call and releases any blocked Speak. Only the first Stop
// releases; an Engine models one playback lifetime per test.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.StopCalls++
	e.stopChan()
	e.mu.Unlock()

	e.stopOnce.Do(func() { close(e.stopped) })
	return nil
}

// stopChan lazily initialises the stop channel. Callers must hold e.mu.
func (e *Engine) stopChan() chan struct{} {
	if e.stopped == nil {
		e.stopped = make(chan struct{})
	}
	return e.stopped
}

// SpokenTexts returns a copy of all recorded texts. Thread-safe.
func (e *Engine) SpokenTexts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.Spoken))
	copy(out, e.Spoken)
	return out
}

// StopCallCount returns the number of Stop calls. Thread-safe.
func (e *Engine) StopCallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.StopCalls
}

var _ tts.Engine = (*Engine)(nil)
