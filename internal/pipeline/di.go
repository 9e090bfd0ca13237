package pipeline

import (
	"github.com/foxseedlab/segmentd/internal/audio"
	"github.com/foxseedlab/segmentd/internal/config"
	"github.com/foxseedlab/segmentd/internal/transcriber"
	"github.com/foxseedlab/segmentd/internal/worker"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Pipeline, error) {
		c := do.MustInvoke[*config.Config](i)
		return New(
			do.MustInvoke[audio.Codec](i),
			do.MustInvoke[*audio.Detector](i),
			do.MustInvoke[*transcriber.SegmentTranscriber](i),
			do.MustInvoke[*worker.Pool](i),
			Config{MinSeconds: c.SentenceMinSeconds, MaxSeconds: c.SentenceMaxSeconds},
		), nil
	})
}
