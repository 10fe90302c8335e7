package audio

import (
	"bytes"
	"fmt"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// EncodeWAV serialises an utterance as a 16-bit PCM WAV file. Used by STT
// providers whose HTTP APIs expect a container format rather than raw PCM.
func EncodeWAV(u Utterance) ([]byte, error) {
	if u.SampleRate <= 0 || u.Channels <= 0 {
		return nil, fmt.Errorf("audio: invalid utterance format %dHz/%dch", u.SampleRate, u.Channels)
	}

	var ws memWriteSeeker
	enc := wav.NewEncoder(&ws, u.SampleRate, bitDepth, u.Channels, 1)

	data := make([]int, len(u.PCM))
	for i, s := range u.PCM {
		data[i] = int(s)
	}
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: u.Channels, SampleRate: u.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("audio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: finalise wav: %w", err)
	}
	return ws.buf, nil
}

// DecodeWAV parses a WAV file into an utterance. Used by TTS providers that
// return synthesised speech as a WAV payload.
func DecodeWAV(data []byte) (Utterance, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Utterance{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf.Format == nil {
		return Utterance{}, fmt.Errorf("audio: wav has no format chunk")
	}

	pcm := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		switch {
		case s > 32767:
			pcm[i] = 32767
		case s < -32768:
			pcm[i] = -32768
		default:
			pcm[i] = int16(s)
		}
	}
	return Utterance{
		PCM:        pcm,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// memWriteSeeker is an in-memory io.WriteSeeker. The wav encoder seeks back
// to patch chunk sizes after writing, so a plain bytes.Buffer is not enough.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		grown := make([]byte, need)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case 0: // io.SeekStart
		next = int(offset)
	case 1: // io.SeekCurrent
		next = m.pos + int(offset)
	case 2: // io.SeekEnd
		next = len(m.buf) + int(offset)
	default:
		return 0, fmt.Errorf("audio: invalid seek whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("audio: seek before start")
	}
	m.pos = next
	return int64(next), nil
}
