package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/segmentd/internal/audio"
	"github.com/foxseedlab/segmentd/internal/repository"
	"github.com/foxseedlab/segmentd/internal/storage"
	"github.com/foxseedlab/segmentd/internal/transcriber"
	"github.com/foxseedlab/segmentd/internal/worker"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidOffset = errors.New("sequence offset must not be negative")

// Transcriber is satisfied by *transcriber.SegmentTranscriber.
type Transcriber interface {
	Transcribe(ctx context.Context, segment []byte) (transcriber.Result, error)
}

// Emitted is one kept segment ready to be committed. Segment.ID and
// Segment.StoragePath are left for the caller to fill.
type Emitted struct {
	Segment    repository.Segment
	Data       []byte
	Terminated bool
}

type Config struct {
	MinSeconds float64
	MaxSeconds float64
}

type Pipeline struct {
	codec       audio.Codec
	detector    *audio.Detector
	transcriber Transcriber
	pool        *worker.Pool
	minSeconds  float64
	maxSeconds  float64
	now         func() time.Time
}

func New(codec audio.Codec, detector *audio.Detector, tr Transcriber, pool *worker.Pool, cfg Config) *Pipeline {
	return &Pipeline{
		codec:       codec,
		detector:    detector,
		transcriber: tr,
		pool:        pool,
		minSeconds:  cfg.MinSeconds,
		maxSeconds:  cfg.MaxSeconds,
		now:         time.Now,
	}
}

// ProcessBatch segments a complete audio file. Sequences start at zero.
func (p *Pipeline) ProcessBatch(ctx context.Context, data []byte, fileHash string) ([]Emitted, error) {
	return p.process(ctx, data, fileHash, 0)
}

// ProcessChunk segments one chunk of a stream. Each chunk is handled on its
// own, so a sentence spanning two chunks is cut at the chunk edge.
func (p *Pipeline) ProcessChunk(ctx context.Context, chunk []byte, streamHash string, offset int) ([]Emitted, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
	}
	return p.process(ctx, chunk, streamHash, offset)
}

func (p *Pipeline) process(ctx context.Context, data []byte, fileHash string, offset int) ([]Emitted, error) {
	if len(data) == 0 {
		return []Emitted{}, nil
	}
	timestamp := p.now()

	var pcm audio.PCM
	var intervals []audio.Interval
	err := p.pool.Do(ctx, func() error {
		decoded, err := p.codec.Decode(ctx, data)
		if err != nil {
			return err
		}
		pcm = decoded
		intervals = p.detector.Detect(decoded)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("decode and detect: %w", err)
	}

	kept := p.filter(pcm, intervals)
	slog.Debug("speech intervals detected", "file_hash", fileHash, "detected", len(intervals), "kept", len(kept), "audio_seconds", pcm.Seconds())
	if len(kept) == 0 {
		return []Emitted{}, nil
	}

	results := make([]Emitted, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.pool.Size())
	for i, iv := range kept {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return p.pool.Do(gctx, func() error {
				// Started work finishes even if the caller goes away.
				em, err := p.processInterval(context.WithoutCancel(gctx), pcm, iv)
				if err != nil {
					return fmt.Errorf("interval %d [%d,%d) ms: %w", i, iv.StartMs, iv.EndMs, err)
				}
				results[i] = em
				return nil
			})
		})
	}
	err = g.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Segment.FileHash = fileHash
		results[i].Segment.Timestamp = timestamp
		results[i].Segment.Sequence = offset + i
	}
	return results, nil
}

// filter measures each interval by the samples it will be cut to, the same
// length the segment record reports.
func (p *Pipeline) filter(pcm audio.PCM, intervals []audio.Interval) []audio.Interval {
	kept := make([]audio.Interval, 0, len(intervals))
	for _, iv := range intervals {
		s := pcm.Slice(iv.StartMs, iv.EndMs).Seconds()
		if s < p.minSeconds || s > p.maxSeconds {
			slog.Debug("interval dropped by duration", "start_ms", iv.StartMs, "end_ms", iv.EndMs, "seconds", s)
			continue
		}
		kept = append(kept, iv)
	}
	return kept
}

func (p *Pipeline) processInterval(ctx context.Context, pcm audio.PCM, iv audio.Interval) (Emitted, error) {
	seg := pcm.Slice(iv.StartMs, iv.EndMs)
	data, err := p.codec.Encode(ctx, seg)
	if err != nil {
		return Emitted{}, fmt.Errorf("encode segment: %w", err)
	}
	res, err := p.transcriber.Transcribe(ctx, data)
	if err != nil {
		return Emitted{}, fmt.Errorf("transcribe segment: %w", err)
	}
	return Emitted{
		Segment: repository.Segment{
			LengthSeconds: seg.Seconds(),
			Text:          res.Text,
			SegmentHash:   storage.Hash(data),
		},
		Data:       data,
		Terminated: res.Terminated,
	}, nil
}
