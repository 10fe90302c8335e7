package pipeline

import (
	"strings"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/unicode/norm"
)

// Detector scores transcripts against the configured wake phrases. An exact
// case-insensitive substring hit wins immediately with similarity 1.0; when
// none is found, a fuzzy pass compares each phrase against token windows of
// the transcript and accepts the best score at or above the threshold.
//
// Fuzzy scoring takes the maximum of two strategies per window: normalized
// Levenshtein similarity (1 - distance/maxLen) and Jaro-Winkler. Edit
// distance recovers one-letter transcription slips ("gideo" for "gideon");
// Jaro-Winkler recovers prefix-preserving garbles.
//
// A Detector is read-only after construction and safe for concurrent use.
type Detector struct {
	phrases   []string
	threshold float64
}

// NewDetector returns a Detector for the given wake phrases. Phrases are
// matched case-insensitively; empty phrases are ignored. threshold is the
// minimum fuzzy similarity in (0, 1].
func NewDetector(phrases []string, threshold float64) *Detector {
	kept := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.75
	}
	return &Detector{phrases: kept, threshold: threshold}
}

// Detect scores transcript against the wake phrases. ok is false when
// nothing reaches the threshold; that is the normal outcome for ordinary
// commands, not an error.
func (d *Detector) Detect(transcript string) (phrase string, similarity float64, ok bool) {
	text := normalize(transcript)
	if text == "" || len(d.phrases) == 0 {
		return "", 0, false
	}

	// Exact pass: first configured phrase contained in the transcript wins.
	for _, p := range d.phrases {
		if strings.Contains(text, normalize(p)) {
			return p, 1.0, true
		}
	}

	// Fuzzy pass: best score over all phrases and token windows.
	tokens := strings.Fields(text)
	var (
		bestPhrase string
		bestScore  float64
	)
	for _, p := range d.phrases {
		if score := d.scorePhrase(normalize(p), text, tokens); score > bestScore {
			bestScore = score
			bestPhrase = p
		}
	}
	if bestScore >= d.threshold {
		return bestPhrase, bestScore, true
	}
	return "", 0, false
}

// Threshold returns the configured fuzzy-match threshold.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// scorePhrase returns the best similarity between phrase and any window of
// len(phrase tokens) consecutive transcript tokens, including the whole
// transcript as a final candidate for short inputs.
func (d *Detector) scorePhrase(phrase, text string, tokens []string) float64 {
	window := len(strings.Fields(phrase))
	if window < 1 {
		return 0
	}

	best := similarity(phrase, text)
	for i := 0; i+window <= len(tokens); i++ {
		candidate := strings.Join(tokens[i:i+window], " ")
		if s := similarity(phrase, candidate); s > best {
			best = s
		}
	}
	return best
}

// similarity returns the maximum of normalized Levenshtein similarity and
// Jaro-Winkler for the two strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	lev := 1.0 - float64(matchr.Levenshtein(a, b))/float64(maxLen)
	if jw := matchr.JaroWinkler(a, b, false); jw > lev {
		return jw
	}
	return lev
}

// normalize lowercases and NFKC-folds s. Compatibility normalization maps
// fullwidth and other presentation variants onto their plain forms, so
// garbled transcripts from the fallback languages compare consistently.
func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}
