package pipeline_test

import (
	"errors"
	"testing"

	"github.com/lberthe/gideon/internal/pipeline"
	"github.com/lberthe/gideon/pkg/provider/mic"
	micmock "github.com/lberthe/gideon/pkg/provider/mic/mock"
)

func TestSelectInputDevice_PicksHighestSampleRate(t *testing.T) {
	t.Parallel()

	src := &micmock.Source{
		DeviceList: []mic.Device{
			{Index: 0, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 16000},
			{Index: 1, Name: "USB Interface", MaxInputChannels: 2, DefaultSampleRate: 48000},
			{Index: 2, Name: "Headset", MaxInputChannels: 1, DefaultSampleRate: 44100},
		},
	}

	got, err := pipeline.SelectInputDevice(src, "")
	if err != nil {
		t.Fatalf("SelectInputDevice: unexpected error: %v", err)
	}
	if got.Index != 1 {
		t.Errorf("SelectInputDevice: index=%d (%q), want 1 (USB Interface)", got.Index, got.Name)
	}
}

func TestSelectInputDevice_SkipsOutputOnlyDevices(t *testing.T) {
	t.Parallel()

	src := &micmock.Source{
		DeviceList: []mic.Device{
			{Index: 0, Name: "HDMI Out", MaxInputChannels: 0, DefaultSampleRate: 192000},
			{Index: 1, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 16000},
		},
	}

	got, err := pipeline.SelectInputDevice(src, "")
	if err != nil {
		t.Fatalf("SelectInputDevice: unexpected error: %v", err)
	}
	if got.Index != 1 {
		t.Errorf("SelectInputDevice: index=%d, want 1 (output-only devices skipped)", got.Index)
	}
}

func TestSelectInputDevice_PreferredName(t *testing.T) {
	t.Parallel()

	src := &micmock.Source{
		DeviceList: []mic.Device{
			{Index: 0, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 48000},
			{Index: 1, Name: "USB Condenser Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
			{Index: 2, Name: "USB Webcam Mic", MaxInputChannels: 1, DefaultSampleRate: 16000},
		},
	}

	// The name filter restricts candidates even though the built-in device
	// has the higher sample rate; within the matches, rate still decides.
	got, err := pipeline.SelectInputDevice(src, "usb")
	if err != nil {
		t.Fatalf("SelectInputDevice: unexpected error: %v", err)
	}
	if got.Index != 1 {
		t.Errorf("SelectInputDevice: index=%d (%q), want 1 (USB Condenser Mic)", got.Index, got.Name)
	}
}

func TestSelectInputDevice_PreferredNameCaseInsensitive(t *testing.T) {
	t.Parallel()

	src := &micmock.Source{
		DeviceList: []mic.Device{
			{Index: 0, Name: "Blue Yeti", MaxInputChannels: 2, DefaultSampleRate: 48000},
		},
	}

	got, err := pipeline.SelectInputDevice(src, "YETI")
	if err != nil {
		t.Fatalf("SelectInputDevice: unexpected error: %v", err)
	}
	if got.Index != 0 {
		t.Errorf("SelectInputDevice: index=%d, want 0", got.Index)
	}
}

func TestSelectInputDevice_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		src       *micmock.Source
		preferred string
	}{
		{name: "enumeration error", src: &micmock.Source{DevicesErr: errors.New("host api down")}},
		{name: "no devices", src: &micmock.Source{}},
		{name: "only output devices", src: &micmock.Source{
			DeviceList: []mic.Device{{Index: 0, Name: "HDMI Out", MaxInputChannels: 0}},
		}},
		{name: "preferred name matches nothing", preferred: "snowball", src: &micmock.Source{
			DeviceList: []mic.Device{{Index: 0, Name: "Built-in Mic", MaxInputChannels: 1}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := pipeline.SelectInputDevice(tt.src, tt.preferred); err == nil {
				t.Error("SelectInputDevice: err=nil, want error so callers fall back to the default device")
			}
		})
	}
}
