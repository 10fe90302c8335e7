package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lberthe/gideon/internal/resilience"
	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/stt"
	sttmock "github.com/lberthe/gideon/pkg/provider/stt/mock"
)

func testUtterance() audio.Utterance {
	return audio.Utterance{
		PCM:        make([]int16, 1600),
		SampleRate: 16000,
		Channels:   1,
		CapturedAt: time.Now(),
	}
}

func TestTranscriberGroup_PrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Result: stt.Transcript{Text: "hello"}}
	fallback := &sttmock.Provider{Result: stt.Transcript{Text: "unused"}}

	g := resilience.NewTranscriberGroup("primary", primary, resilience.BreakerConfig{})
	g.AddFallback("fallback", fallback)

	tr, err := g.Transcribe(context.Background(), testUtterance(), "en-US")
	if err != nil {
		t.Fatalf("Transcribe: unexpected error: %v", err)
	}
	if tr.Text != "hello" {
		t.Errorf("Transcribe: text=%q, want %q", tr.Text, "hello")
	}
	if got := fallback.CallCount(); got != 0 {
		t.Errorf("fallback called %d times, want 0", got)
	}
}

func TestTranscriberGroup_FailsOverOnUnavailable(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Err: stt.ErrUnavailable}
	fallback := &sttmock.Provider{Result: stt.Transcript{Text: "from fallback"}}

	g := resilience.NewTranscriberGroup("primary", primary, resilience.BreakerConfig{})
	g.AddFallback("fallback", fallback)

	tr, err := g.Transcribe(context.Background(), testUtterance(), "en-US")
	if err != nil {
		t.Fatalf("Transcribe: unexpected error: %v", err)
	}
	if tr.Text != "from fallback" {
		t.Errorf("Transcribe: text=%q, want %q", tr.Text, "from fallback")
	}
}

func TestTranscriberGroup_RecognitionOutcomesShortCircuit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "no speech", err: stt.ErrNoSpeech},
		{name: "not understood", err: stt.ErrNotUnderstood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			primary := &sttmock.Provider{Err: tt.err}
			fallback := &sttmock.Provider{Result: stt.Transcript{Text: "should not be tried"}}

			g := resilience.NewTranscriberGroup("primary", primary, resilience.BreakerConfig{})
			g.AddFallback("fallback", fallback)

			_, err := g.Transcribe(context.Background(), testUtterance(), "en-US")
			if !errors.Is(err, tt.err) {
				t.Fatalf("Transcribe: err=%v, want %v", err, tt.err)
			}
			// Silence will not transcribe better on another backend.
			if got := fallback.CallCount(); got != 0 {
				t.Errorf("fallback called %d times, want 0", got)
			}
		})
	}
}

func TestTranscriberGroup_RecognitionOutcomesDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Err: stt.ErrNotUnderstood}
	g := resilience.NewTranscriberGroup("primary", primary, resilience.BreakerConfig{MaxFailures: 2})

	for range 10 {
		g.Transcribe(context.Background(), testUtterance(), "en-US")
	}
	if got := g.States()["primary"]; got != resilience.StateClosed {
		t.Errorf("primary breaker state=%v, want closed after recognition outcomes", got)
	}
}

func TestTranscriberGroup_OpenBreakerSkipsEntry(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Err: stt.ErrUnavailable}
	fallback := &sttmock.Provider{Result: stt.Transcript{Text: "ok"}}

	g := resilience.NewTranscriberGroup("primary", primary, resilience.BreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})
	g.AddFallback("fallback", fallback)

	// Trip the primary's breaker.
	for range 2 {
		if _, err := g.Transcribe(context.Background(), testUtterance(), "en-US"); err != nil {
			t.Fatalf("Transcribe: unexpected error: %v", err)
		}
	}
	if got := g.States()["primary"]; got != resilience.StateOpen {
		t.Fatalf("primary breaker state=%v, want open", got)
	}

	primaryCalls := primary.CallCount()
	if _, err := g.Transcribe(context.Background(), testUtterance(), "en-US"); err != nil {
		t.Fatalf("Transcribe: unexpected error: %v", err)
	}
	if got := primary.CallCount(); got != primaryCalls {
		t.Errorf("primary called %d times, want %d (skipped while breaker open)", got, primaryCalls)
	}
}

func TestTranscriberGroup_AllFailed(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Err: stt.ErrUnavailable}
	fallback := &sttmock.Provider{Err: errors.New("dial tcp: connection refused")}

	g := resilience.NewTranscriberGroup("primary", primary, resilience.BreakerConfig{})
	g.AddFallback("fallback", fallback)

	_, err := g.Transcribe(context.Background(), testUtterance(), "en-US")
	if !errors.Is(err, resilience.ErrAllTranscribersFailed) {
		t.Errorf("Transcribe: err=%v, want ErrAllTranscribersFailed", err)
	}
	// Callers keep matching on the stt taxonomy.
	if !errors.Is(err, stt.ErrUnavailable) {
		t.Errorf("Transcribe: err=%v, want it to wrap stt.ErrUnavailable", err)
	}
}
