package audio

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// RMS returns the root-mean-square energy of the samples on the same scale
// as int16 PCM amplitudes. An empty slice yields 0.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// FluxAnalyzer computes the spectral flux between consecutive audio frames.
// Flux rises sharply at speech onsets and falls during sustained silence,
// which makes it a robust endpointing signal on top of a plain energy
// threshold (steady background hum has high energy but near-zero flux).
//
// A FluxAnalyzer is stateful: each call to Flux compares the new frame
// against the magnitude spectrum of the previous one. Not safe for
// concurrent use; each capture stream owns its own analyzer.
type FluxAnalyzer struct {
	prev []float64
}

// NewFluxAnalyzer returns an analyzer with no history. The first Flux call
// establishes the baseline and returns 0.
func NewFluxAnalyzer() *FluxAnalyzer {
	return &FluxAnalyzer{}
}

// Flux returns the positive spectral flux of frame relative to the previous
// frame: the sum of increases in magnitude across frequency bins. Decreases
// are ignored so that speech offsets do not register as onsets.
func (a *FluxAnalyzer) Flux(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}

	input := make([]float64, len(frame))
	for i, s := range frame {
		input[i] = float64(s) / 32768.0
	}

	spectrum := fft.FFTReal(input)
	mags := make([]float64, len(spectrum)/2)
	for i := range mags {
		mags[i] = cmplxAbs(spectrum[i])
	}

	if a.prev == nil || len(a.prev) != len(mags) {
		a.prev = mags
		return 0
	}

	var flux float64
	for i, m := range mags {
		if d := m - a.prev[i]; d > 0 {
			flux += d
		}
	}
	a.prev = mags
	return flux
}

// Reset clears the analyzer history so the next frame establishes a fresh
// baseline. Use between captures to avoid stale state from the previous
// utterance.
func (a *FluxAnalyzer) Reset() {
	a.prev = nil
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
