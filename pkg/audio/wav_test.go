package audio_test

import (
	"testing"
	"time"

	"github.com/lberthe/gideon/pkg/audio"
)

func TestEncodeDecodeWAV(t *testing.T) {
	t.Parallel()

	in := audio.Utterance{
		PCM:        sine(1600, 440, 16000, 9000),
		SampleRate: 16000,
		Channels:   1,
	}

	data, err := audio.EncodeWAV(in)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("EncodeWAV produced no bytes")
	}
	// RIFF header sanity.
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("EncodeWAV produced a non-WAV header: % x", data[:12])
	}

	out, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.SampleRate != in.SampleRate {
		t.Errorf("SampleRate = %d, want %d", out.SampleRate, in.SampleRate)
	}
	if out.Channels != in.Channels {
		t.Errorf("Channels = %d, want %d", out.Channels, in.Channels)
	}
	if len(out.PCM) != len(in.PCM) {
		t.Fatalf("len(PCM) = %d, want %d", len(out.PCM), len(in.PCM))
	}
	for i := range in.PCM {
		if out.PCM[i] != in.PCM[i] {
			t.Fatalf("PCM[%d] = %d, want %d", i, out.PCM[i], in.PCM[i])
		}
	}
}

func TestEncodeWAV_InvalidFormat(t *testing.T) {
	t.Parallel()

	_, err := audio.EncodeWAV(audio.Utterance{PCM: []int16{1, 2, 3}})
	if err == nil {
		t.Error("EncodeWAV accepted an utterance without sample rate or channels")
	}
}

func TestDecodeWAV_Garbage(t *testing.T) {
	t.Parallel()

	_, err := audio.DecodeWAV([]byte("definitely not a wav file"))
	if err == nil {
		t.Error("DecodeWAV accepted garbage input")
	}
}

func TestUtterance_Duration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		u    audio.Utterance
		want time.Duration
	}{
		{
			name: "one second mono",
			u:    audio.Utterance{PCM: make([]int16, 16000), SampleRate: 16000, Channels: 1},
			want: time.Second,
		},
		{
			name: "interleaved stereo halves the frame count",
			u:    audio.Utterance{PCM: make([]int16, 16000), SampleRate: 16000, Channels: 2},
			want: 500 * time.Millisecond,
		},
		{
			name: "zero format",
			u:    audio.Utterance{PCM: make([]int16, 100)},
			want: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.u.Duration(); got != tc.want {
				t.Errorf("Duration() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestUtterance_Empty(t *testing.T) {
	t.Parallel()

	if !(audio.Utterance{}).Empty() {
		t.Error("zero utterance should be empty")
	}
	if (audio.Utterance{PCM: []int16{1}}).Empty() {
		t.Error("utterance with samples should not be empty")
	}
}
