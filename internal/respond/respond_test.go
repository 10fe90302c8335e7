package respond_test

import (
	"context"
	"strings"
	"testing"

	"github.com/lberthe/gideon/internal/respond"
)

func TestCategorize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		want       respond.Category
	}{
		{name: "greeting word", transcript: "hey gideon what time is it", want: respond.CategoryGreeting},
		{name: "greeting case insensitive", transcript: "Hello there", want: respond.CategoryGreeting},
		{name: "plain command", transcript: "turn off the lights", want: respond.CategoryGeneral},
		{name: "empty", transcript: "", want: respond.CategoryError},
		{name: "whitespace only", transcript: "   \t ", want: respond.CategoryError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := respond.Categorize(tc.transcript); got != tc.want {
				t.Errorf("Categorize(%q) = %q, want %q", tc.transcript, got, tc.want)
			}
		})
	}
}

func TestCanned_FixedSeedIsReproducible(t *testing.T) {
	t.Parallel()

	transcripts := []string{
		"hello gideon",
		"what is the weather",
		"",
		"set a timer for five minutes",
		"hey how are you",
	}

	collect := func() []string {
		g := respond.NewCanned(42)
		out := make([]string, 0, len(transcripts))
		for _, tr := range transcripts {
			reply, err := g.Reply(context.Background(), tr)
			if err != nil {
				t.Fatalf("Reply(%q): %v", tr, err)
			}
			out = append(out, reply)
		}
		return out
	}

	first := collect()
	second := collect()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("reply %d differs across identically seeded generators:\n%q\n%q", i, first[i], second[i])
		}
	}
}

func TestCanned_GreetingGetsGreetingPhrase(t *testing.T) {
	t.Parallel()

	g := respond.NewCanned(1, respond.WithPhrases(respond.CategoryGreeting, []string{"greeting reply"}))

	reply, err := g.Reply(context.Background(), "hi gideon")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply != "greeting reply" {
		t.Errorf("Reply = %q, want the overridden greeting phrase", reply)
	}
}

func TestCanned_NeverReturnsEmpty(t *testing.T) {
	t.Parallel()

	g := respond.NewCanned(7)
	for _, tr := range []string{"", "hello", "anything else at all"} {
		reply, err := g.Reply(context.Background(), tr)
		if err != nil {
			t.Fatalf("Reply(%q): %v", tr, err)
		}
		if strings.TrimSpace(reply) == "" {
			t.Errorf("Reply(%q) returned an empty phrase", tr)
		}
	}
}
