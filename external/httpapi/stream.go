package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/foxseedlab/segmentd/internal/audio"
	"github.com/gorilla/websocket"
)

const resetCommand = "reset"

type streamStatusMessage struct {
	Status            string `json:"status"`
	SegmentsProcessed int    `json:"segments_processed"`
	CurrentFileHash   string `json:"current_file_hash"`
	Error             string `json:"error,omitempty"`
}

// handleStream treats every binary message as one audio chunk and answers each
// with a status message.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()
	conn.SetReadLimit(s.cfg.StreamMaxMessageBytes)

	stream := s.newStream()
	defer stream.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("stream read failed", "error", err)
			}
			return
		}

		var reply streamStatusMessage
		switch messageType {
		case websocket.BinaryMessage:
			st, err := stream.ProcessChunk(r.Context(), data)
			reply = streamStatusMessage{
				Status:            "processed",
				SegmentsProcessed: st.SegmentsProcessed,
				CurrentFileHash:   st.CurrentFileHash,
			}
			if err != nil {
				reply.Status = "error"
				reply.Error = chunkErrorMessage(err)
				slog.Warn("stream chunk failed", "error", err, "file_hash", st.CurrentFileHash)
			}
		case websocket.TextMessage:
			if strings.TrimSpace(string(data)) != resetCommand {
				reply = streamStatusMessage{Status: "error", Error: "unknown command"}
				break
			}
			stream.Reset()
			reply = streamStatusMessage{Status: "reset"}
		default:
			continue
		}

		if err := conn.WriteJSON(reply); err != nil {
			slog.Warn("stream write failed", "error", err)
			return
		}
	}
}

func chunkErrorMessage(err error) string {
	if errors.Is(err, audio.ErrDecode) {
		return "audio could not be decoded"
	}
	return "failed to process chunk"
}
