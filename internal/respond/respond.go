// Package respond defines the response-generator port the command consumer
// speaks through, plus a canned fallback used when no external generator is
// configured or reachable.
package respond

import (
	"context"
	"math/rand"
	"strings"
	"sync"
)

// Generator produces reply text for a recognized transcript. Implementations
// may call a local model, a cloud LLM, or return canned phrases; the pipeline
// has no knowledge of which.
type Generator interface {
	Reply(ctx context.Context, transcript string) (string, error)
}

// Category labels a canned phrase list.
type Category string

const (
	CategoryGreeting Category = "greeting"
	CategoryGeneral  Category = "general"
	CategoryError    Category = "error"
)

// greetingWords trigger the greeting category when present in the transcript.
var greetingWords = []string{"hello", "hi", "hey", "greetings", "good morning", "good evening"}

// defaultPhrases mirror the assistant's limited-mode persona.
var defaultPhrases = map[Category][]string{
	CategoryGreeting: {
		"Hello! I'm Gideon, your local voice assistant. How can I help you?",
		"Hi there! I'm running locally on your system. What can I do for you?",
		"Greetings! Your voice assistant is ready to help.",
	},
	CategoryGeneral: {
		"I'm operating in limited mode right now, but I'll do my best to help you.",
		"My response generator is offline, but I heard you loud and clear.",
		"I can't reach my language model right now. Let me help with what I know.",
	},
	CategoryError: {
		"I had trouble processing that request. Could you try rephrasing it?",
		"Something went wrong on my end. Please try again in a moment.",
		"I'm having difficulty with that one. Could you be more specific?",
	},
}

// Canned is a Generator that selects among fixed phrase lists. Selection uses
// an explicitly seeded generator so a fixed seed yields a reproducible
// sequence of replies.
type Canned struct {
	mu      sync.Mutex
	rng     *rand.Rand
	phrases map[Category][]string
}

// CannedOption is a functional option for configuring a Canned generator.
type CannedOption func(*Canned)

// WithPhrases replaces the phrase list for a category. Empty lists are
// ignored.
func WithPhrases(cat Category, phrases []string) CannedOption {
	return func(c *Canned) {
		if len(phrases) > 0 {
			c.phrases[cat] = phrases
		}
	}
}

// NewCanned creates a canned generator seeded with seed.
func NewCanned(seed int64, opts ...CannedOption) *Canned {
	c := &Canned{
		rng:     rand.New(rand.NewSource(seed)),
		phrases: make(map[Category][]string, len(defaultPhrases)),
	}
	for cat, list := range defaultPhrases {
		c.phrases[cat] = list
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Reply categorizes the transcript and returns one phrase from the matching
// list. It never returns an error; the canned generator is the last resort.
func (c *Canned) Reply(_ context.Context, transcript string) (string, error) {
	list := c.phrases[Categorize(transcript)]

	c.mu.Lock()
	defer c.mu.Unlock()
	return list[c.rng.Intn(len(list))], nil
}

// Categorize maps a transcript to its canned-phrase category. Empty or
// whitespace-only transcripts are errors; transcripts containing a greeting
// word are greetings; everything else is general.
func Categorize(transcript string) Category {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return CategoryError
	}
	lower := strings.ToLower(trimmed)
	for _, w := range greetingWords {
		if strings.Contains(lower, w) {
			return CategoryGreeting
		}
	}
	return CategoryGeneral
}

var _ Generator = (*Canned)(nil)
