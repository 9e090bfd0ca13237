package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/foxseedlab/segmentd/internal/pipeline"
	"github.com/foxseedlab/segmentd/internal/repository"
	"github.com/foxseedlab/segmentd/internal/storage"
	"github.com/foxseedlab/segmentd/internal/webhook"
)

// Processor is satisfied by *pipeline.Pipeline.
type Processor interface {
	ProcessBatch(ctx context.Context, data []byte, fileHash string) ([]pipeline.Emitted, error)
	ProcessChunk(ctx context.Context, chunk []byte, streamHash string, offset int) ([]pipeline.Emitted, error)
}

type UploadResult struct {
	FileHash       string
	SegmentsCount  int
	ProcessingTime time.Duration
	Segments       []repository.Segment
}

// Manager commits pipeline output to the blob store and the index, and serves
// it back.
type Manager struct {
	store     storage.Store
	index     repository.SegmentIndex
	processor Processor
	webhook   webhook.Sender
	now       func() time.Time
}

func NewManager(store storage.Store, index repository.SegmentIndex, processor Processor, wh webhook.Sender) *Manager {
	return &Manager{
		store:     store,
		index:     index,
		processor: processor,
		webhook:   wh,
		now:       time.Now,
	}
}

func (m *Manager) Upload(ctx context.Context, data []byte) (*UploadResult, error) {
	started := m.now()
	fileHash := storage.Hash(data)
	slog.Info("upload received", "file_hash", fileHash, "bytes", len(data))

	var emitted []pipeline.Emitted
	err := m.staged(data, func(staged []byte) error {
		var err error
		emitted, err = m.processor.ProcessBatch(ctx, staged, fileHash)
		return err
	})
	if err != nil {
		slog.Error("failed to process upload", "error", err, "file_hash", fileHash)
		return nil, fmt.Errorf("process upload: %w", err)
	}
	segments, err := m.commit(ctx, emitted)
	if err != nil {
		slog.Error("failed to commit segments", "error", err, "file_hash", fileHash)
		return nil, err
	}

	result := &UploadResult{
		FileHash:       fileHash,
		SegmentsCount:  len(segments),
		ProcessingTime: m.now().Sub(started),
		Segments:       segments,
	}
	slog.Info("upload processed", "file_hash", fileHash, "segments", result.SegmentsCount, "processing_time", result.ProcessingTime)

	// The rows are committed; a client gone away does not cancel the announcement.
	if err := m.webhook.SendSegmentsProcessed(context.WithoutCancel(ctx), toWebhookPayload(result)); err != nil {
		slog.Error("failed to send segments webhook", "error", err, "file_hash", fileHash)
	}
	return result, nil
}

// staged writes data to the temporary area and runs fn on the bytes read back
// from it. The staged file is removed when fn returns.
func (m *Manager) staged(data []byte, fn func(staged []byte) error) error {
	tempPath, err := m.store.SaveTemporary(data)
	if err != nil {
		return fmt.Errorf("stage input: %w", err)
	}
	defer func() {
		if err := m.store.RemoveTemporary(tempPath); err != nil {
			slog.Warn("failed to remove staged input", "error", err, "path", tempPath)
		}
	}()

	rc, err := m.store.Open(tempPath)
	if err != nil {
		return fmt.Errorf("open staged input: %w", err)
	}
	staged, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("%w: read staged input: %v", storage.ErrStorageIO, err)
	}
	return fn(staged)
}

// commit saves blobs and rows in sequence order. Once started it ignores
// cancellation so an accepted result is not left half written.
func (m *Manager) commit(ctx context.Context, emitted []pipeline.Emitted) ([]repository.Segment, error) {
	ctx = context.WithoutCancel(ctx)
	segments := make([]repository.Segment, 0, len(emitted))
	for _, em := range emitted {
		seg := em.Segment
		path, err := m.store.Save(seg.FileHash, seg.Sequence, em.Data)
		if err != nil {
			return nil, fmt.Errorf("save segment %d: %w", seg.Sequence, err)
		}
		seg.StoragePath = path
		id, err := m.index.Insert(ctx, seg)
		if err != nil {
			return nil, fmt.Errorf("index segment %d: %w", seg.Sequence, err)
		}
		seg.ID = id
		segments = append(segments, seg)
		slog.Debug("segment committed", "file_hash", seg.FileHash, "sequence", seg.Sequence, "segment_id", id, "terminated", em.Terminated)
	}
	return segments, nil
}

func (m *Manager) ListSegments(ctx context.Context, fileHash string) ([]repository.Segment, error) {
	segments, err := m.index.QueryByHash(ctx, fileHash)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	if len(segments) == 0 {
		return nil, repository.ErrNotFound
	}
	return segments, nil
}

// OpenSegment returns the stored bytes of one segment after checking them
// against the hash recorded at commit time.
func (m *Manager) OpenSegment(ctx context.Context, fileHash string, sequence int) (io.ReadCloser, *repository.Segment, error) {
	seg, err := m.index.QueryBySequence(ctx, fileHash, sequence)
	if err != nil {
		return nil, nil, fmt.Errorf("query segment: %w", err)
	}
	if seg == nil {
		return nil, nil, repository.ErrNotFound
	}
	if !m.store.Verify(seg.StoragePath, seg.SegmentHash) {
		slog.Error("segment failed integrity check", "file_hash", fileHash, "sequence", sequence, "path", seg.StoragePath)
		return nil, nil, storage.ErrIntegrityMismatch
	}
	rc, err := m.store.Open(seg.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open segment: %w", err)
	}
	return rc, seg, nil
}

func (m *Manager) DeleteSegments(ctx context.Context, fileHash string) (int64, error) {
	n, err := m.index.DeleteByHash(ctx, fileHash)
	if err != nil {
		return 0, fmt.Errorf("delete segments: %w", err)
	}
	if n == 0 {
		return 0, repository.ErrNotFound
	}
	if err := m.store.RemoveAll(fileHash); err != nil {
		return n, fmt.Errorf("remove segment files: %w", err)
	}
	slog.Info("segments deleted", "file_hash", fileHash, "rows", n)
	return n, nil
}

func toWebhookPayload(r *UploadResult) webhook.SegmentsProcessedPayload {
	summaries := make([]webhook.SegmentSummary, 0, len(r.Segments))
	for _, seg := range r.Segments {
		summaries = append(summaries, webhook.SegmentSummary{
			Sequence:      seg.Sequence,
			LengthSeconds: seg.LengthSeconds,
			Text:          seg.Text,
		})
	}
	return webhook.SegmentsProcessedPayload{
		FileHash:       r.FileHash,
		SegmentsCount:  r.SegmentsCount,
		ProcessingTime: r.ProcessingTime.Seconds(),
		Segments:       summaries,
		Transcript:     transcriptLines(r.Segments),
	}
}
