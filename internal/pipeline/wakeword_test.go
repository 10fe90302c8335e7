package pipeline_test

import (
	"testing"

	"github.com/lberthe/gideon/internal/pipeline"
)

func TestDetector_ExactSubstringMatch(t *testing.T) {
	t.Parallel()

	d := pipeline.NewDetector([]string{"gideon"}, 0.75)

	phrase, sim, ok := d.Detect("hey gideon turn on lights")
	if !ok {
		t.Fatalf("Detect: ok=false, want true")
	}
	if phrase != "gideon" {
		t.Errorf("Detect: phrase=%q, want %q", phrase, "gideon")
	}
	if sim != 1.0 {
		t.Errorf("Detect: similarity=%f, want 1.0 for exact substring", sim)
	}
}

func TestDetector_FuzzyMatch(t *testing.T) {
	t.Parallel()

	d := pipeline.NewDetector([]string{"gideon"}, 0.75)

	// One edit against a six-letter phrase yields ~0.83 similarity.
	phrase, sim, ok := d.Detect("hey gideo turn on lights")
	if !ok {
		t.Fatalf("Detect(%q): ok=false, want true", "hey gideo turn on lights")
	}
	if phrase != "gideon" {
		t.Errorf("Detect: phrase=%q, want %q", phrase, "gideon")
	}
	if sim < 0.75 {
		t.Errorf("Detect: similarity=%f, want >= 0.75", sim)
	}
}

func TestDetector_NoMatch(t *testing.T) {
	t.Parallel()

	d := pipeline.NewDetector([]string{"gideon"}, 0.75)

	phrase, sim, ok := d.Detect("completely unrelated text")
	if ok {
		t.Fatalf("Detect: ok=true (phrase=%q similarity=%f), want false", phrase, sim)
	}
}

func TestDetector_FirstExactHitWins(t *testing.T) {
	t.Parallel()

	d := pipeline.NewDetector([]string{"computer", "gideon"}, 0.75)

	phrase, _, ok := d.Detect("gideon ask the computer something")
	if !ok {
		t.Fatalf("Detect: ok=false, want true")
	}
	// Both phrases are contained; the first configured one wins.
	if phrase != "computer" {
		t.Errorf("Detect: phrase=%q, want first configured phrase %q", phrase, "computer")
	}
}

func TestDetector_MultiWordPhraseWindow(t *testing.T) {
	t.Parallel()

	d := pipeline.NewDetector([]string{"hey gideon"}, 0.75)

	phrase, sim, ok := d.Detect("okay hey gideom play music")
	if !ok {
		t.Fatalf("Detect: ok=false, want true for one-edit two-word window")
	}
	if phrase != "hey gideon" {
		t.Errorf("Detect: phrase=%q, want %q", phrase, "hey gideon")
	}
	if sim < 0.75 {
		t.Errorf("Detect: similarity=%f, want >= 0.75", sim)
	}
}

func TestDetector_EmptyInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		phrases    []string
		transcript string
	}{
		{name: "empty transcript", phrases: []string{"gideon"}, transcript: ""},
		{name: "whitespace transcript", phrases: []string{"gideon"}, transcript: "   "},
		{name: "no phrases", phrases: nil, transcript: "hey gideon"},
		{name: "blank phrases", phrases: []string{"", "  "}, transcript: "hey gideon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := pipeline.NewDetector(tt.phrases, 0.75)
			if _, _, ok := d.Detect(tt.transcript); ok {
				t.Errorf("Detect(%q): ok=true, want false", tt.transcript)
			}
		})
	}
}

func TestDetector_CaseInsensitive(t *testing.T) {
	t.Parallel()

	d := pipeline.NewDetector([]string{"Gideon"}, 0.75)

	phrase, sim, ok := d.Detect("HEY GIDEON")
	if !ok {
		t.Fatalf("Detect: ok=false, want true")
	}
	if phrase != "Gideon" {
		t.Errorf("Detect: phrase=%q, want original casing %q", phrase, "Gideon")
	}
	if sim != 1.0 {
		t.Errorf("Detect: similarity=%f, want 1.0", sim)
	}
}

func TestDetector_CompatibilityFolding(t *testing.T) {
	t.Parallel()

	d := pipeline.NewDetector([]string{"gideon"}, 0.75)

	// Fullwidth forms fold to plain ASCII under NFKC, so a transcript of
	// presentation variants still hits the exact pass.
	phrase, sim, ok := d.Detect("ｈｅｙ ｇｉｄｅｏｎ turn on lights")
	if !ok {
		t.Fatalf("Detect: ok=false, want true for fullwidth transcript")
	}
	if phrase != "gideon" {
		t.Errorf("Detect: phrase=%q, want %q", phrase, "gideon")
	}
	if sim != 1.0 {
		t.Errorf("Detect: similarity=%f, want 1.0 after folding", sim)
	}
}
