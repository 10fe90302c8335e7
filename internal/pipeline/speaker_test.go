package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lberthe/gideon/internal/pipeline"
	ttsmock "github.com/lberthe/gideon/pkg/provider/tts/mock"
)

func TestSpeaker_NonPriorityWhileBusyIsSkipped(t *testing.T) {
	t.Parallel()

	engine := &ttsmock.Engine{Block: make(chan struct{})}
	s, err := pipeline.NewSpeaker(engine)
	if err != nil {
		t.Fatalf("NewSpeaker: %v", err)
	}

	if got := s.Speak(context.Background(), "first", false); got != pipeline.SpeakStarted {
		t.Fatalf("Speak(first)=%v, want %v", got, pipeline.SpeakStarted)
	}
	waitSpeaking(t, s, true)

	if got := s.Speak(context.Background(), "second", false); got != pipeline.SpeakSkipped {
		t.Errorf("Speak(second)=%v, want %v", got, pipeline.SpeakSkipped)
	}

	close(engine.Block)
	s.Wait()

	if texts := engine.SpokenTexts(); len(texts) != 1 || texts[0] != "first" {
		t.Errorf("SpokenTexts=%v, want [first]", texts)
	}
}

func TestSpeaker_ConcurrentSpeaksExactlyOnePlayback(t *testing.T) {
	t.Parallel()

	engine := &ttsmock.Engine{Block: make(chan struct{})}
	s, err := pipeline.NewSpeaker(engine)
	if err != nil {
		t.Fatalf("NewSpeaker: %v", err)
	}

	const callers = 8
	outcomes := make([]pipeline.SpeakOutcome, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = s.Speak(context.Background(), "race", false)
		}()
	}
	wg.Wait()

	started := 0
	for _, o := range outcomes {
		switch o {
		case pipeline.SpeakStarted:
			started++
		case pipeline.SpeakSkipped:
		default:
			t.Errorf("unexpected outcome %v from non-priority Speak", o)
		}
	}
	if started != 1 {
		t.Errorf("started=%d, want exactly 1 playback", started)
	}

	close(engine.Block)
	s.Wait()
}

func TestSpeaker_PriorityPreempts(t *testing.T) {
	t.Parallel()

	engine := &ttsmock.Engine{Block: make(chan struct{})}
	s, err := pipeline.NewSpeaker(engine)
	if err != nil {
		t.Fatalf("NewSpeaker: %v", err)
	}

	if got := s.Speak(context.Background(), "current", false); got != pipeline.SpeakStarted {
		t.Fatalf("Speak(current)=%v, want %v", got, pipeline.SpeakStarted)
	}
	waitSpeaking(t, s, true)

	if got := s.Speak(context.Background(), "urgent", true); got != pipeline.SpeakPreempted {
		t.Errorf("Speak(urgent, priority)=%v, want %v", got, pipeline.SpeakPreempted)
	}
	if engine.StopCallCount() == 0 {
		t.Error("priority Speak did not stop the current utterance")
	}

	s.Wait()
	texts := engine.SpokenTexts()
	if len(texts) != 2 || texts[1] != "urgent" {
		t.Errorf("SpokenTexts=%v, want [current urgent]", texts)
	}
}

func TestSpeaker_IsSpeakingLifecycle(t *testing.T) {
	t.Parallel()

	engine := &ttsmock.Engine{Block: make(chan struct{})}
	s, err := pipeline.NewSpeaker(engine)
	if err != nil {
		t.Fatalf("NewSpeaker: %v", err)
	}

	if s.IsSpeaking() {
		t.Error("IsSpeaking=true before any Speak")
	}
	s.Speak(context.Background(), "hello", false)
	waitSpeaking(t, s, true)

	close(engine.Block)
	s.Wait()
	waitSpeaking(t, s, false)
}

// waitSpeaking polls IsSpeaking until it reaches want, failing after a bound.
func waitSpeaking(t *testing.T, s *pipeline.Speaker, want bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.IsSpeaking() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("IsSpeaking never became %v", want)
}
