package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lberthe/gideon/pkg/audio"
	"github.com/lberthe/gideon/pkg/provider/mic"
)

// ambientFactor scales the measured ambient RMS into a voice-activity
// threshold. Speech onset has to clear the noise floor by this margin.
const ambientFactor = 1.5

// CalibrationConfig carries the tuning parameters for ambient noise
// calibration. Zero values are replaced by the documented defaults in
// NewCalibrator.
type CalibrationConfig struct {
	// AmbientDuration is how much ambient audio one calibration samples.
	AmbientDuration time.Duration

	// MinThreshold and MaxThreshold bound the derived energy threshold. A
	// floor keeps arbitrary noise from triggering capture; a ceiling keeps
	// speech detectable.
	MinThreshold float64
	MaxThreshold float64

	// InitialThreshold is the threshold before the first calibration.
	InitialThreshold float64

	// Interval is how long a calibration stays fresh.
	Interval time.Duration

	// MaxFailures is the consecutive-failure count that forces an early
	// recalibration.
	MaxFailures int
}

// Calibrator owns the calibration state: the current energy threshold, the
// last calibration time and the consecutive-failure counter. Safe for
// concurrent use; the loop writes, health checkers read.
type Calibrator struct {
	cfg CalibrationConfig

	mu              sync.Mutex
	threshold       float64
	lastCalibration time.Time
	failures        int
}

// NewCalibrator returns a Calibrator with the initial threshold clamped into
// the configured bounds.
func NewCalibrator(cfg CalibrationConfig) *Calibrator {
	if cfg.AmbientDuration <= 0 {
		cfg.AmbientDuration = 300 * time.Millisecond
	}
	if cfg.MinThreshold <= 0 {
		cfg.MinThreshold = 100
	}
	if cfg.MaxThreshold <= cfg.MinThreshold {
		cfg.MaxThreshold = 1000
	}
	if cfg.InitialThreshold <= 0 {
		cfg.InitialThreshold = 300
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	return &Calibrator{
		cfg:       cfg,
		threshold: clamp(cfg.InitialThreshold, cfg.MinThreshold, cfg.MaxThreshold),
	}
}

// ShouldRecalibrate reports whether a calibration is due at now: the last one
// has aged past the interval, or consecutive failures reached the limit.
func (c *Calibrator) ShouldRecalibrate(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures >= c.cfg.MaxFailures {
		return true
	}
	return now.Sub(c.lastCalibration) > c.cfg.Interval
}

// Calibrate samples ambient audio from src and derives a new clamped energy
// threshold. On microphone failure the prior threshold is retained and the
// error returned; callers treat that as reportable, not fatal. The
// calibration timestamp is only advanced on success.
func (c *Calibrator) Calibrate(ctx context.Context, src mic.Source) (float64, error) {
	c.mu.Lock()
	dur := c.cfg.AmbientDuration
	prior := c.threshold
	c.mu.Unlock()

	ambient, err := src.SampleAmbient(ctx, dur)
	if err != nil {
		return prior, fmt.Errorf("sample ambient noise: %w", err)
	}

	derived := clamp(audio.RMS(ambient.PCM)*ambientFactor, c.cfg.MinThreshold, c.cfg.MaxThreshold)

	c.mu.Lock()
	c.threshold = derived
	c.lastCalibration = time.Now()
	c.mu.Unlock()
	return derived, nil
}

// Threshold returns the current energy threshold.
func (c *Calibrator) Threshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// RecordFailure increments the consecutive-failure counter and returns the
// new count.
func (c *Calibrator) RecordFailure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	return c.failures
}

// ResetFailures zeroes the consecutive-failure counter.
func (c *Calibrator) ResetFailures() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
}

// Failures returns the current consecutive-failure count.
func (c *Calibrator) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
