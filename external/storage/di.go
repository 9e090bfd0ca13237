package storage

import (
	"strings"

	"github.com/foxseedlab/segmentd/internal/audio"
	"github.com/foxseedlab/segmentd/internal/config"
	"github.com/foxseedlab/segmentd/internal/storage"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (storage.Store, error) {
		c := do.MustInvoke[*config.Config](i)
		codec := do.MustInvoke[audio.Codec](i)
		s, err := NewFilesystemStore(c.SegmentsDir, codec.Extension(), strings.TrimPrefix(c.InputExtension(), "."))
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
