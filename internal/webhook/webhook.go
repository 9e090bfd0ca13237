package webhook

import "context"

type SegmentSummary struct {
	Sequence      int     `json:"sequence"`
	LengthSeconds float64 `json:"length_seconds"`
	Text          string  `json:"text"`
}

// SegmentsProcessedPayload announces a finished upload to an external listener.
type SegmentsProcessedPayload struct {
	FileHash       string           `json:"file_hash"`
	SegmentsCount  int              `json:"segments_count"`
	ProcessingTime float64          `json:"processing_time"`
	Segments       []SegmentSummary `json:"segments"`
	// Transcript is the recognized text of all segments, newline separated.
	Transcript string `json:"transcript"`
}

type Sender interface {
	SendSegmentsProcessed(ctx context.Context, payload SegmentsProcessedPayload) error
}
