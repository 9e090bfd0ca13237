package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/segmentd/internal/repository"
)

// Transcript renders the recognized text of a source as plain text, one line
// per segment.
func (m *Manager) Transcript(ctx context.Context, fileHash string) ([]byte, error) {
	segments, err := m.ListSegments(ctx, fileHash)
	if err != nil {
		return nil, err
	}
	return buildTranscriptText(fileHash, segments), nil
}

// buildTranscriptText prefixes each line with the segment's offset on a clock
// that only advances through kept speech; dropped intervals and pauses are not counted.
func buildTranscriptText(fileHash string, segments []repository.Segment) []byte {
	lines := []string{
		fmt.Sprintf("file_hash: %s", fileHash),
		fmt.Sprintf("segments: %d", len(segments)),
		"",
	}
	var elapsed time.Duration
	for _, seg := range segments {
		start := elapsed
		elapsed += time.Duration(seg.LengthSeconds * float64(time.Second))
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s [%04d] %s", formatElapsedHMS(start), seg.Sequence, seg.Text))
	}
	return []byte(strings.Join(lines, "\n"))
}

func transcriptLines(segments []repository.Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Text != "" {
			lines = append(lines, seg.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func formatElapsedHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
