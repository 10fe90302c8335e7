package pipeline_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lberthe/gideon/internal/pipeline"
	"github.com/lberthe/gideon/pkg/audio"
	micmock "github.com/lberthe/gideon/pkg/provider/mic/mock"
)

// flatTone returns an utterance whose every sample has the given amplitude,
// so its RMS equals the amplitude exactly.
func flatTone(amplitude int16, n int) audio.Utterance {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = amplitude
	}
	return audio.Utterance{PCM: pcm, SampleRate: 16000, Channels: 1, CapturedAt: time.Now()}
}

func TestCalibrator_ThresholdClamping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		amplitude int16
		wantMin   float64
		wantMax   float64
	}{
		{name: "silence clamps to floor", amplitude: 0, wantMin: 100, wantMax: 100},
		{name: "quiet room stays in range", amplitude: 200, wantMin: 100, wantMax: 1000},
		{name: "loud room clamps to ceiling", amplitude: 20000, wantMin: 1000, wantMax: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := pipeline.NewCalibrator(pipeline.CalibrationConfig{
				MinThreshold: 100,
				MaxThreshold: 1000,
			})
			src := &micmock.Source{Ambient: flatTone(tt.amplitude, 4800)}

			got, err := c.Calibrate(context.Background(), src)
			if err != nil {
				t.Fatalf("Calibrate: unexpected error: %v", err)
			}
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("Calibrate: threshold=%f, want within [%f, %f]", got, tt.wantMin, tt.wantMax)
			}
			if got != c.Threshold() {
				t.Errorf("Threshold()=%f, want %f", c.Threshold(), got)
			}
		})
	}
}

func TestCalibrator_DerivedThresholdScalesAmbient(t *testing.T) {
	t.Parallel()

	c := pipeline.NewCalibrator(pipeline.CalibrationConfig{
		MinThreshold: 100,
		MaxThreshold: 1000,
	})
	src := &micmock.Source{Ambient: flatTone(400, 4800)}

	got, err := c.Calibrate(context.Background(), src)
	if err != nil {
		t.Fatalf("Calibrate: unexpected error: %v", err)
	}
	// RMS of a flat 400 tone is 400; the threshold is 1.5x the noise floor.
	if math.Abs(got-600) > 1 {
		t.Errorf("Calibrate: threshold=%f, want ~600", got)
	}
}

func TestCalibrator_ShouldRecalibrate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		failures int
		elapsed  time.Duration
		want     bool
	}{
		{name: "fresh with no failures", failures: 0, elapsed: 10 * time.Second, want: false},
		{name: "stale calibration", failures: 0, elapsed: 31 * time.Second, want: true},
		{name: "failure limit reached", failures: 3, elapsed: 0, want: true},
		{name: "failures below limit", failures: 2, elapsed: 10 * time.Second, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := pipeline.NewCalibrator(pipeline.CalibrationConfig{
				Interval:    30 * time.Second,
				MaxFailures: 3,
			})
			src := &micmock.Source{Ambient: flatTone(200, 4800)}
			if _, err := c.Calibrate(context.Background(), src); err != nil {
				t.Fatalf("Calibrate: unexpected error: %v", err)
			}
			for range tt.failures {
				c.RecordFailure()
			}

			if got := c.ShouldRecalibrate(time.Now().Add(tt.elapsed)); got != tt.want {
				t.Errorf("ShouldRecalibrate(+%v, failures=%d)=%v, want %v", tt.elapsed, tt.failures, got, tt.want)
			}
		})
	}
}

func TestCalibrator_NeverCalibratedIsDue(t *testing.T) {
	t.Parallel()

	c := pipeline.NewCalibrator(pipeline.CalibrationConfig{Interval: 30 * time.Second})
	if !c.ShouldRecalibrate(time.Now()) {
		t.Error("ShouldRecalibrate before any calibration = false, want true")
	}
}

func TestCalibrator_MicFailureKeepsPriorThreshold(t *testing.T) {
	t.Parallel()

	c := pipeline.NewCalibrator(pipeline.CalibrationConfig{InitialThreshold: 300})
	src := &micmock.Source{Ambient: flatTone(200, 4800)}

	// Cancelled context makes SampleAmbient fail.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := c.Calibrate(ctx, src)
	if err == nil {
		t.Fatal("Calibrate with failing mic: err=nil, want error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Calibrate: err=%v, want context.Canceled", err)
	}
	if got != 300 {
		t.Errorf("Calibrate: threshold=%f, want prior 300", got)
	}
	if c.Threshold() != 300 {
		t.Errorf("Threshold()=%f, want prior 300", c.Threshold())
	}
}

func TestCalibrator_FailureCounter(t *testing.T) {
	t.Parallel()

	c := pipeline.NewCalibrator(pipeline.CalibrationConfig{})
	if got := c.RecordFailure(); got != 1 {
		t.Errorf("RecordFailure()=%d, want 1", got)
	}
	if got := c.RecordFailure(); got != 2 {
		t.Errorf("RecordFailure()=%d, want 2", got)
	}
	c.ResetFailures()
	if got := c.Failures(); got != 0 {
		t.Errorf("Failures() after reset=%d, want 0", got)
	}
}
