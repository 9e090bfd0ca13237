package audio

import (
	"context"
	"encoding/binary"
	"errors"
)

// ErrDecode marks input that is not a parseable audio container.
var ErrDecode = errors.New("audio decode failed")

// PCM is signed 16-bit mono audio.
type PCM struct {
	Samples    []int16
	SampleRate int
}

func (p PCM) DurationMs() int {
	if p.SampleRate <= 0 {
		return 0
	}
	return int(int64(len(p.Samples)) * 1000 / int64(p.SampleRate))
}

func (p PCM) Seconds() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// Slice returns the samples between startMs and endMs, clamped to the clip.
// The returned PCM shares the underlying array.
func (p PCM) Slice(startMs, endMs int) PCM {
	from := p.sampleIndex(startMs)
	to := p.sampleIndex(endMs)
	if to < from {
		to = from
	}
	return PCM{Samples: p.Samples[from:to], SampleRate: p.SampleRate}
}

func (p PCM) sampleIndex(ms int) int {
	if ms <= 0 {
		return 0
	}
	i := int(int64(ms) * int64(p.SampleRate) / 1000)
	if i > len(p.Samples) {
		return len(p.Samples)
	}
	return i
}

// LittleEndian encodes the samples as LINEAR16.
func (p PCM) LittleEndian() []byte {
	out := make([]byte, len(p.Samples)*2)
	for i, s := range p.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// FromLittleEndian interprets raw LINEAR16 bytes. A trailing odd byte is dropped.
func FromLittleEndian(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}

// Interval is a speech range in milliseconds, end exclusive.
type Interval struct {
	StartMs int
	EndMs   int
}

func (iv Interval) Seconds() float64 {
	return float64(iv.EndMs-iv.StartMs) / 1000.0
}

// Codec converts between the storage container and mono PCM at a fixed rate.
type Codec interface {
	// Decode returns mono PCM resampled to the codec's target rate.
	// Input that cannot be parsed yields an error wrapping ErrDecode.
	Decode(ctx context.Context, data []byte) (PCM, error)
	Encode(ctx context.Context, pcm PCM) ([]byte, error)
	// Extension is the file extension of encoded segments, without a dot.
	Extension() string
}
