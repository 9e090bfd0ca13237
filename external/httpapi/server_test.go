package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/segmentd/internal/audio"
	"github.com/foxseedlab/segmentd/internal/config"
	"github.com/foxseedlab/segmentd/internal/ingest"
	"github.com/foxseedlab/segmentd/internal/repository"
	"github.com/foxseedlab/segmentd/internal/storage"
	"github.com/gorilla/websocket"
)

var testHash = storage.Hash([]byte("source"))

type mockService struct {
	uploadErr   error
	uploaded    [][]byte
	segments    []repository.Segment
	listErr     error
	openErr     error
	openData    []byte
	deleteErr   error
	deletedHash string
}

func (m *mockService) Upload(_ context.Context, data []byte) (*ingest.UploadResult, error) {
	m.uploaded = append(m.uploaded, data)
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return &ingest.UploadResult{FileHash: storage.Hash(data), SegmentsCount: 2, ProcessingTime: 1500 * time.Millisecond}, nil
}

func (m *mockService) ListSegments(_ context.Context, _ string) ([]repository.Segment, error) {
	return m.segments, m.listErr
}

func (m *mockService) OpenSegment(_ context.Context, fileHash string, sequence int) (io.ReadCloser, *repository.Segment, error) {
	if m.openErr != nil {
		return nil, nil, m.openErr
	}
	seg := &repository.Segment{FileHash: fileHash, Sequence: sequence, StoragePath: fmt.Sprintf("/x/segment_%04d.wav", sequence)}
	return io.NopCloser(bytes.NewReader(m.openData)), seg, nil
}

func (m *mockService) DeleteSegments(_ context.Context, fileHash string) (int64, error) {
	m.deletedHash = fileHash
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return 3, nil
}

func (m *mockService) Transcript(_ context.Context, _ string) ([]byte, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return []byte("file_hash: x\n\n00:00:00 [0000] Hello."), nil
}

type mockStream struct {
	mu      sync.Mutex
	chunks  int
	resets  int
	closed  bool
	failErr error
}

func (m *mockStream) ProcessChunk(_ context.Context, chunk []byte) (ingest.StreamStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks++
	if m.failErr != nil {
		return ingest.StreamStatus{CurrentFileHash: "h"}, m.failErr
	}
	return ingest.StreamStatus{SegmentsProcessed: len(chunk), CurrentFileHash: "h"}, nil
}

func (m *mockStream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

func (m *mockStream) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func testConfig() *config.Config {
	return &config.Config{
		MaxUploadBytes:        64,
		StreamMaxMessageBytes: 1024,
		SupportedExtensions:   []string{".mp3"},
	}
}

func newTestServer(svc *mockService, stream *mockStream) *httptest.Server {
	srv := NewServer(testConfig(), svc, func() StreamSession { return stream })
	return httptest.NewServer(srv.Handler())
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write(content)
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	server := newTestServer(&mockService{}, &mockStream{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var got healthResponse
	_ = json.NewDecoder(resp.Body).Decode(&got)
	if resp.StatusCode != http.StatusOK || got.Status != "healthy" || got.Timestamp == "" {
		t.Fatalf("unexpected health response: %d %+v", resp.StatusCode, got)
	}
}

func TestUpload(t *testing.T) {
	cases := []struct {
		name       string
		field      string
		filename   string
		content    []byte
		uploadErr  error
		wantStatus int
	}{
		{name: "success", field: "file", filename: "talk.mp3", content: []byte("mp3data"), wantStatus: http.StatusOK},
		{name: "uppercase extension", field: "file", filename: "TALK.MP3", content: []byte("mp3data"), wantStatus: http.StatusOK},
		{name: "unsupported extension", field: "file", filename: "talk.wav", content: []byte("x"), wantStatus: http.StatusBadRequest},
		{name: "missing field", field: "other", filename: "talk.mp3", content: []byte("x"), wantStatus: http.StatusBadRequest},
		{name: "too large", field: "file", filename: "talk.mp3", content: bytes.Repeat([]byte{1}, 65), wantStatus: http.StatusRequestEntityTooLarge},
		{name: "decode error", field: "file", filename: "talk.mp3", content: []byte("x"), uploadErr: fmt.Errorf("process: %w", audio.ErrDecode), wantStatus: http.StatusUnprocessableEntity},
		{name: "storage error", field: "file", filename: "talk.mp3", content: []byte("x"), uploadErr: fmt.Errorf("save: %w", storage.ErrStorageIO), wantStatus: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{uploadErr: tc.uploadErr}
			server := newTestServer(svc, &mockStream{})
			defer server.Close()

			body, contentType := multipartBody(t, tc.field, tc.filename, tc.content)
			resp, err := http.Post(server.URL+"/upload", contentType, body)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer func() {
				_ = resp.Body.Close()
			}()
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, resp.StatusCode)
			}
			if tc.wantStatus != http.StatusOK {
				return
			}
			var got uploadResponse
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if got.FileHash != storage.Hash(tc.content) || got.SegmentsCount != 2 || got.ProcessingTime != 1.5 || got.Message == "" {
				t.Fatalf("unexpected response: %+v", got)
			}
			if len(svc.uploaded) != 1 || !bytes.Equal(svc.uploaded[0], tc.content) {
				t.Fatal("expected uploaded bytes to reach the service")
			}
		})
	}
}

func TestListSegments(t *testing.T) {
	svc := &mockService{segments: []repository.Segment{
		{ID: 10, Sequence: 0, LengthSeconds: 2.5, Text: "Hello.", StoragePath: "/a/segment_0000.wav"},
		{ID: 11, Sequence: 1, LengthSeconds: 1.5, StoragePath: "/a/segment_0001.wav"},
	}}
	server := newTestServer(svc, &mockStream{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/segments/" + testHash)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var got []segmentResponse
	_ = json.NewDecoder(resp.Body).Decode(&got)
	if resp.StatusCode != http.StatusOK || len(got) != 2 {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, got)
	}
	if got[0].SegmentID != 10 || got[0].Text != "Hello." || got[1].Sequence != 1 || got[1].Text != "" {
		t.Fatalf("unexpected segments: %+v", got)
	}
}

func TestListSegments_Errors(t *testing.T) {
	cases := map[string]struct {
		path       string
		listErr    error
		wantStatus int
	}{
		"not found":    {path: "/segments/" + testHash, listErr: repository.ErrNotFound, wantStatus: http.StatusNotFound},
		"invalid hash": {path: "/segments/not-a-hash", wantStatus: http.StatusBadRequest},
		"index error":  {path: "/segments/" + testHash, listErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			server := newTestServer(&mockService{listErr: tc.listErr}, &mockStream{})
			defer server.Close()
			resp, err := http.Get(server.URL + tc.path)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestDownloadSegment(t *testing.T) {
	server := newTestServer(&mockService{openData: []byte("RIFFdata")}, &mockStream{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/segments/" + testHash + "/3")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "RIFFdata" {
		t.Fatalf("unexpected response: %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "segment_0003.wav") {
		t.Fatalf("unexpected content disposition: %s", cd)
	}
}

func TestTranscript(t *testing.T) {
	server := newTestServer(&mockService{}, &mockStream{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/segments/" + testHash + "/transcript")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "[0000] Hello.") {
		t.Fatalf("unexpected response: %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type: %s", ct)
	}

	missing := newTestServer(&mockService{listErr: repository.ErrNotFound}, &mockStream{})
	defer missing.Close()
	resp2, err := http.Get(missing.URL + "/segments/" + testHash + "/transcript")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp2.StatusCode)
	}
}

func TestDownloadSegment_Errors(t *testing.T) {
	cases := map[string]struct {
		path       string
		openErr    error
		wantStatus int
	}{
		"missing":            {path: "/segments/" + testHash + "/9", openErr: repository.ErrNotFound, wantStatus: http.StatusNotFound},
		"integrity mismatch": {path: "/segments/" + testHash + "/0", openErr: storage.ErrIntegrityMismatch, wantStatus: http.StatusInternalServerError},
		"bad sequence":       {path: "/segments/" + testHash + "/abc", wantStatus: http.StatusBadRequest},
		"negative sequence":  {path: "/segments/" + testHash + "/-1", wantStatus: http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			server := newTestServer(&mockService{openErr: tc.openErr}, &mockStream{})
			defer server.Close()
			resp, err := http.Get(server.URL + tc.path)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestDeleteSegments(t *testing.T) {
	svc := &mockService{}
	server := newTestServer(svc, &mockStream{})
	defer server.Close()

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/segments/"+testHash, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var got deleteResponse
	_ = json.NewDecoder(resp.Body).Decode(&got)
	if resp.StatusCode != http.StatusOK || got.FileHash != testHash || svc.deletedHash != testHash {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, got)
	}

	svc.deleteErr = repository.ErrNotFound
	req, _ = http.NewRequest(http.MethodDelete, server.URL+"/segments/"+testHash, nil)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp2.StatusCode)
	}
}

func dialStream(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func TestStream_ChunksAndReset(t *testing.T) {
	stream := &mockStream{}
	server := newTestServer(&mockService{}, stream)
	defer server.Close()
	conn := dialStream(t, server)
	defer func() {
		_ = conn.Close()
	}()

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var got streamStatusMessage
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Status != "processed" || got.SegmentsProcessed != 3 || got.CurrentFileHash != "h" {
		t.Fatalf("unexpected status: %+v", got)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("reset")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got = streamStatusMessage{}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Status != "reset" {
		t.Fatalf("unexpected status: %+v", got)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("dance")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got = streamStatusMessage{}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Status != "error" {
		t.Fatalf("expected error for unknown command, got %+v", got)
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.chunks != 1 || stream.resets != 1 {
		t.Fatalf("unexpected stream calls: chunks=%d resets=%d", stream.chunks, stream.resets)
	}
}

func TestStream_ChunkErrorKeepsConnection(t *testing.T) {
	stream := &mockStream{failErr: audio.ErrDecode}
	server := newTestServer(&mockService{}, stream)
	defer server.Close()
	conn := dialStream(t, server)
	defer func() {
		_ = conn.Close()
	}()

	for range 2 {
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1}); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		var got streamStatusMessage
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if got.Status != "error" || got.Error == "" {
			t.Fatalf("unexpected status: %+v", got)
		}
	}
}

func TestStream_OversizedMessageClosesConnection(t *testing.T) {
	stream := &mockStream{}
	server := newTestServer(&mockService{}, stream)
	defer server.Close()
	conn := dialStream(t, server)
	defer func() {
		_ = conn.Close()
	}()

	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 2048)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close after oversized message")
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.chunks != 0 {
		t.Fatal("expected oversized chunk not to be processed")
	}
}
