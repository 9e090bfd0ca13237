package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/foxseedlab/segmentd/internal/pipeline"
	"github.com/foxseedlab/segmentd/internal/storage"
	"github.com/oklog/ulid/v2"
)

type StreamStatus struct {
	SegmentsProcessed int
	CurrentFileHash   string
}

// Stream is one logical audio stream. It is named by the hash of its first
// chunk and numbers segments across chunks.
type Stream struct {
	ID      string
	manager *Manager

	mu   sync.Mutex
	hash string
	next int
}

func (m *Manager) NewStream() *Stream {
	s := &Stream{ID: ulid.Make().String(), manager: m}
	slog.Info("stream opened", "stream_id", s.ID)
	return s
}

func (s *Stream) ProcessChunk(ctx context.Context, chunk []byte) (StreamStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(chunk) == 0 {
		return StreamStatus{CurrentFileHash: s.hash}, nil
	}
	if s.hash == "" {
		s.hash = storage.Hash(chunk)
		slog.Info("stream started", "stream_id", s.ID, "file_hash", s.hash)
	}

	var emitted []pipeline.Emitted
	err := s.manager.staged(chunk, func(staged []byte) error {
		var err error
		emitted, err = s.manager.processor.ProcessChunk(ctx, staged, s.hash, s.next)
		return err
	})
	if err != nil {
		return StreamStatus{CurrentFileHash: s.hash}, err
	}
	segments, err := s.manager.commit(ctx, emitted)
	if err != nil {
		return StreamStatus{CurrentFileHash: s.hash}, err
	}
	s.next += len(segments)
	slog.Debug("stream chunk processed", "stream_id", s.ID, "file_hash", s.hash, "segments", len(segments), "next_sequence", s.next)
	return StreamStatus{SegmentsProcessed: len(segments), CurrentFileHash: s.hash}, nil
}

// Reset makes the next chunk start a new logical stream.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	slog.Info("stream reset", "stream_id", s.ID, "file_hash", s.hash, "segments", s.next)
	s.hash = ""
	s.next = 0
}

func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	slog.Info("stream closed", "stream_id", s.ID, "file_hash", s.hash, "segments", s.next)
}
