package transcriber

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/foxseedlab/segmentd/internal/audio"
)

var (
	// ErrNoResult is returned by engines when the audio held no recognizable speech.
	ErrNoResult = errors.New("no recognition result")
	// ErrInvalidInput is returned for calls that are wrong regardless of the audio.
	ErrInvalidInput = errors.New("invalid transcription input")
)

// Engine is the external speech-to-text service.
type Engine interface {
	Recognize(ctx context.Context, pcm audio.PCM, locale string) (string, error)
}

// Result is the outcome of transcribing one segment.
type Result struct {
	Text string
	// OK is false when the engine produced nothing usable for any reason.
	OK bool
	// Terminated reports sentence-ending punctuation. It is informational and
	// never decides whether a segment is kept.
	Terminated bool
}

// SegmentTranscriber turns one encoded segment into text, absorbing every
// per-segment recognition failure.
type SegmentTranscriber struct {
	codec  audio.Codec
	engine Engine
	locale string
}

func NewSegmentTranscriber(codec audio.Codec, engine Engine, locale string) *SegmentTranscriber {
	return &SegmentTranscriber{codec: codec, engine: engine, locale: locale}
}

func (t *SegmentTranscriber) Transcribe(ctx context.Context, segment []byte) (Result, error) {
	if len(segment) == 0 {
		return Result{}, ErrInvalidInput
	}
	pcm, err := t.codec.Decode(ctx, segment)
	if err != nil {
		slog.Warn("segment decode for recognition failed", "error", err, "segment_bytes", len(segment))
		return Result{}, nil
	}
	text, err := t.engine.Recognize(ctx, pcm, t.locale)
	if err != nil {
		if errors.Is(err, ErrNoResult) {
			slog.Debug("recognition returned no result", "segment_seconds", pcm.Seconds())
		} else {
			slog.Warn("recognition failed", "error", err, "segment_seconds", pcm.Seconds())
		}
		return Result{}, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, nil
	}
	return Result{Text: text, OK: true, Terminated: endsSentence(text)}, nil
}

func endsSentence(text string) bool {
	return strings.ContainsAny(text[len(text)-1:], ".!?")
}
