package transcriber

import (
	"context"

	"github.com/foxseedlab/segmentd/internal/audio"
	"github.com/foxseedlab/segmentd/internal/transcriber"
)

// noopEngine never recognizes anything; segments are still stored with empty text.
type noopEngine struct{}

func NewNoopEngine() transcriber.Engine {
	return noopEngine{}
}

func (noopEngine) Recognize(_ context.Context, _ audio.PCM, _ string) (string, error) {
	return "", transcriber.ErrNoResult
}
