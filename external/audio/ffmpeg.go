package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/foxseedlab/segmentd/internal/audio"
)

const mp3Extension = "mp3"

// FFmpegCodec shells out to ffmpeg for both directions and stores segments as MP3.
type FFmpegCodec struct {
	ffmpegPath string
	sampleRate int
}

func NewFFmpegCodec(ffmpegPath string, sampleRate int) audio.Codec {
	return &FFmpegCodec{ffmpegPath: ffmpegPath, sampleRate: sampleRate}
}

func (c *FFmpegCodec) Extension() string {
	return mp3Extension
}

func (c *FFmpegCodec) Decode(ctx context.Context, data []byte) (audio.PCM, error) {
	rate := strconv.Itoa(c.sampleRate)
	// ffmpeg -i pipe:0 -ac 1 -ar <rate> -f s16le pipe:1
	raw, err := c.run(ctx, data,
		"-i", "pipe:0",
		"-ac", "1", "-ar", rate,
		"-f", "s16le", "pipe:1",
	)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%w: %v", audio.ErrDecode, err)
	}
	return audio.PCM{Samples: audio.FromLittleEndian(raw), SampleRate: c.sampleRate}, nil
}

func (c *FFmpegCodec) Encode(ctx context.Context, pcm audio.PCM) ([]byte, error) {
	out, err := c.run(ctx, pcm.LittleEndian(),
		"-f", "s16le", "-ac", "1", "-ar", strconv.Itoa(pcm.SampleRate),
		"-i", "pipe:0",
		"-f", "mp3", "pipe:1",
	)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg encode: %w", err)
	}
	return out, nil
}

func (c *FFmpegCodec) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	cmd := exec.CommandContext(ctx, c.ffmpegPath, full...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("ffmpeg: %w", err)
		}
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}
