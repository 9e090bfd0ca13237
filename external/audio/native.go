package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/foxseedlab/segmentd/internal/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/orcaman/writerseeker"
)

const (
	// go-mp3 always yields interleaved 16-bit stereo.
	mp3Channels   = 2
	wavBitDepth   = 16
	wavFormatPCM  = 1
	wavExtension  = "wav"
	riffHeaderLen = 12
)

// NativeCodec decodes MP3 in-process and stores segments as 16-bit mono WAV.
type NativeCodec struct {
	sampleRate int
}

func NewNativeCodec(sampleRate int) audio.Codec {
	return &NativeCodec{sampleRate: sampleRate}
}

func (c *NativeCodec) Extension() string {
	return wavExtension
}

func (c *NativeCodec) Decode(_ context.Context, data []byte) (audio.PCM, error) {
	if isRIFFWave(data) {
		return c.decodeWAV(data)
	}
	return c.decodeMP3(data)
}

func (c *NativeCodec) decodeMP3(data []byte) (audio.PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%w: mp3: %v", audio.ErrDecode, err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%w: mp3 frames: %v", audio.ErrDecode, err)
	}
	mono := audio.Downmix(audio.FromLittleEndian(raw), mp3Channels)
	return audio.PCM{
		Samples:    audio.Resample(mono, dec.SampleRate(), c.sampleRate),
		SampleRate: c.sampleRate,
	}, nil
}

func (c *NativeCodec) decodeWAV(data []byte) (audio.PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return audio.PCM{}, fmt.Errorf("%w: invalid wav header", audio.ErrDecode)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%w: wav samples: %v", audio.ErrDecode, err)
	}
	shift := int(dec.BitDepth) - wavBitDepth
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		samples[i] = int16(v)
	}
	mono := audio.Downmix(samples, int(dec.NumChans))
	return audio.PCM{
		Samples:    audio.Resample(mono, int(dec.SampleRate), c.sampleRate),
		SampleRate: c.sampleRate,
	}, nil
}

func (c *NativeCodec) Encode(_ context.Context, pcm audio.PCM) ([]byte, error) {
	out := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(out, pcm.SampleRate, wavBitDepth, 1, wavFormatPCM)

	ints := make([]int, len(pcm.Samples))
	for i, s := range pcm.Samples {
		ints[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: pcm.SampleRate},
		Data:           ints,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}
	encoded, err := io.ReadAll(out.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return encoded, nil
}

func isRIFFWave(data []byte) bool {
	return len(data) >= riffHeaderLen && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}
