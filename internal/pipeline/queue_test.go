package pipeline_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lberthe/gideon/internal/pipeline"
)

func cmd(text string) pipeline.VoiceCommand {
	return pipeline.VoiceCommand{Text: text, Confidence: 1.0, CapturedAt: time.Now()}
}

func TestCommandQueue_FIFOOrdering(t *testing.T) {
	t.Parallel()

	q := pipeline.NewCommandQueue(8)
	for _, text := range []string{"c1", "c2", "c3"} {
		if dropped := q.Push(cmd(text)); dropped {
			t.Fatalf("Push(%q): dropped=true, want false", text)
		}
	}

	for _, want := range []string{"c1", "c2", "c3"} {
		got, ok := q.Pop(context.Background(), time.Second)
		if !ok {
			t.Fatalf("Pop: ok=false, want command %q", want)
		}
		if got.Text != want {
			t.Errorf("Pop: text=%q, want %q", got.Text, want)
		}
	}
}

func TestCommandQueue_OldestDropPolicy(t *testing.T) {
	t.Parallel()

	q := pipeline.NewCommandQueue(3)
	for i := 1; i <= 3; i++ {
		q.Push(cmd(fmt.Sprintf("c%d", i)))
	}

	// The fourth push discards the oldest command, never the newest.
	if dropped := q.Push(cmd("c4")); !dropped {
		t.Fatal("Push into full queue: dropped=false, want true")
	}
	if got := q.Dropped(); got != 1 {
		t.Errorf("Dropped()=%d, want 1", got)
	}

	for _, want := range []string{"c2", "c3", "c4"} {
		got, ok := q.Pop(context.Background(), time.Second)
		if !ok {
			t.Fatalf("Pop: ok=false, want command %q", want)
		}
		if got.Text != want {
			t.Errorf("Pop: text=%q, want %q", got.Text, want)
		}
	}
}

func TestCommandQueue_PopTimeout(t *testing.T) {
	t.Parallel()

	q := pipeline.NewCommandQueue(4)

	start := time.Now()
	_, ok := q.Pop(context.Background(), 50*time.Millisecond)
	if ok {
		t.Fatal("Pop on empty queue: ok=true, want false")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Pop returned after %v, want to block for the timeout", elapsed)
	}
}

func TestCommandQueue_PopCancellation(t *testing.T) {
	t.Parallel()

	q := pipeline.NewCommandQueue(4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(ctx, time.Minute)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Error("Pop after cancellation: ok=true, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after context cancellation")
	}
}

func TestCommandQueue_PopWakesOnPush(t *testing.T) {
	t.Parallel()

	q := pipeline.NewCommandQueue(4)

	type result struct {
		cmd pipeline.VoiceCommand
		ok  bool
	}
	done := make(chan result, 1)
	go func() {
		c, ok := q.Pop(context.Background(), 5*time.Second)
		done <- result{cmd: c, ok: ok}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(cmd("wake"))

	select {
	case r := <-done:
		if !r.ok {
			t.Fatal("Pop: ok=false, want true after Push")
		}
		if r.cmd.Text != "wake" {
			t.Errorf("Pop: text=%q, want %q", r.cmd.Text, "wake")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestCommandQueue_Len(t *testing.T) {
	t.Parallel()

	q := pipeline.NewCommandQueue(4)
	if got := q.Len(); got != 0 {
		t.Errorf("Len()=%d, want 0", got)
	}
	q.Push(cmd("a"))
	q.Push(cmd("b"))
	if got := q.Len(); got != 2 {
		t.Errorf("Len()=%d, want 2", got)
	}
}
