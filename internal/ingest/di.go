package ingest

import (
	"github.com/foxseedlab/segmentd/internal/pipeline"
	"github.com/foxseedlab/segmentd/internal/repository"
	"github.com/foxseedlab/segmentd/internal/storage"
	"github.com/foxseedlab/segmentd/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		store := do.MustInvoke[storage.Store](i)
		index := do.MustInvoke[repository.SegmentIndex](i)
		p := do.MustInvoke[*pipeline.Pipeline](i)
		wh := do.MustInvoke[webhook.Sender](i)
		return NewManager(store, index, p, wh), nil
	})
}
