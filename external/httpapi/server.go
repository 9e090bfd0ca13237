package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/foxseedlab/segmentd/internal/audio"
	"github.com/foxseedlab/segmentd/internal/config"
	"github.com/foxseedlab/segmentd/internal/ingest"
	"github.com/foxseedlab/segmentd/internal/repository"
	"github.com/foxseedlab/segmentd/internal/storage"
	"github.com/gorilla/websocket"
)

// multipartOverhead is the slack allowed on top of the file size for form boundaries and headers.
const multipartOverhead = 1 << 20

var segmentContentTypes = map[string]string{
	".wav": "audio/wav",
	".mp3": "audio/mpeg",
}

// Service is satisfied by *ingest.Manager.
type Service interface {
	Upload(ctx context.Context, data []byte) (*ingest.UploadResult, error)
	ListSegments(ctx context.Context, fileHash string) ([]repository.Segment, error)
	OpenSegment(ctx context.Context, fileHash string, sequence int) (io.ReadCloser, *repository.Segment, error)
	DeleteSegments(ctx context.Context, fileHash string) (int64, error)
	Transcript(ctx context.Context, fileHash string) ([]byte, error)
}

// StreamSession is satisfied by *ingest.Stream.
type StreamSession interface {
	ProcessChunk(ctx context.Context, chunk []byte) (ingest.StreamStatus, error)
	Reset()
	Close()
}

type Server struct {
	cfg       *config.Config
	service   Service
	newStream func() StreamSession
	upgrader  websocket.Upgrader
	now       func() time.Time
}

func NewServer(cfg *config.Config, service Service, newStream func() StreamSession) *Server {
	return &Server{
		cfg:       cfg,
		service:   service,
		newStream: newStream,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 << 10,
			WriteBufferSize: 4 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /segments/{hash}", s.handleListSegments)
	mux.HandleFunc("GET /segments/{hash}/{sequence}", s.handleDownloadSegment)
	mux.HandleFunc("GET /segments/{hash}/transcript", s.handleTranscript)
	mux.HandleFunc("DELETE /segments/{hash}", s.handleDeleteSegments)
	mux.HandleFunc("GET /stream", s.handleStream)
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type uploadResponse struct {
	Message        string  `json:"message"`
	FileHash       string  `json:"file_hash"`
	SegmentsCount  int     `json:"segments_count"`
	ProcessingTime float64 `json:"processing_time"`
}

type segmentResponse struct {
	SegmentID     int64   `json:"segment_id"`
	Sequence      int     `json:"sequence"`
	LengthSeconds float64 `json:"length_seconds"`
	Text          string  `json:"text"`
	StoragePath   string  `json:"storage_path"`
}

type deleteResponse struct {
	Message  string `json:"message"`
	FileHash string `json:"file_hash"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	if !s.cfg.IsSupportedFile(header.Filename) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type: %q", filepath.Ext(header.Filename)))
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	result, err := s.service.Upload(r.Context(), data)
	if err != nil {
		switch {
		case errors.Is(err, audio.ErrDecode):
			writeError(w, http.StatusUnprocessableEntity, "audio could not be decoded")
		default:
			slog.Error("upload failed", "error", err, "filename", header.Filename)
			writeError(w, http.StatusInternalServerError, "failed to process upload")
		}
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Message:        "File processed successfully",
		FileHash:       result.FileHash,
		SegmentsCount:  result.SegmentsCount,
		ProcessingTime: result.ProcessingTime.Seconds(),
	})
}

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if !storage.IsValidHash(hash) {
		writeError(w, http.StatusBadRequest, "invalid file hash")
		return
	}
	segments, err := s.service.ListSegments(r.Context(), hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no segments found")
			return
		}
		slog.Error("list segments failed", "error", err, "file_hash", hash)
		writeError(w, http.StatusInternalServerError, "failed to list segments")
		return
	}
	out := make([]segmentResponse, 0, len(segments))
	for _, seg := range segments {
		out = append(out, segmentResponse{
			SegmentID:     seg.ID,
			Sequence:      seg.Sequence,
			LengthSeconds: seg.LengthSeconds,
			Text:          seg.Text,
			StoragePath:   seg.StoragePath,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDownloadSegment(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if !storage.IsValidHash(hash) {
		writeError(w, http.StatusBadRequest, "invalid file hash")
		return
	}
	sequence, err := strconv.Atoi(r.PathValue("sequence"))
	if err != nil || sequence < 0 {
		writeError(w, http.StatusBadRequest, "invalid sequence")
		return
	}

	rc, seg, err := s.service.OpenSegment(r.Context(), hash, sequence)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "segment not found")
		case errors.Is(err, storage.ErrIntegrityMismatch):
			writeError(w, http.StatusInternalServerError, "segment failed integrity check")
		default:
			slog.Error("open segment failed", "error", err, "file_hash", hash, "sequence", sequence)
			writeError(w, http.StatusInternalServerError, "failed to read segment")
		}
		return
	}
	defer func() {
		_ = rc.Close()
	}()

	w.Header().Set("Content-Type", contentTypeFor(seg.StoragePath))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(seg.StoragePath)))
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("failed to stream segment", "error", err, "file_hash", hash, "sequence", sequence)
	}
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if !storage.IsValidHash(hash) {
		writeError(w, http.StatusBadRequest, "invalid file hash")
		return
	}
	body, err := s.service.Transcript(r.Context(), hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no segments found")
			return
		}
		slog.Error("build transcript failed", "error", err, "file_hash", hash)
		writeError(w, http.StatusInternalServerError, "failed to build transcript")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transcript-"+hash+".txt"))
	_, _ = w.Write(body)
}

func (s *Server) handleDeleteSegments(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if !storage.IsValidHash(hash) {
		writeError(w, http.StatusBadRequest, "invalid file hash")
		return
	}
	if _, err := s.service.DeleteSegments(r.Context(), hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no segments found")
			return
		}
		slog.Error("delete segments failed", "error", err, "file_hash", hash)
		writeError(w, http.StatusInternalServerError, "failed to delete segments")
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Message: "Segments deleted", FileHash: hash})
}

func contentTypeFor(path string) string {
	if ct, ok := segmentContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}
