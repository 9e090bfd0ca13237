package httpapi

import (
	"github.com/foxseedlab/segmentd/internal/config"
	"github.com/foxseedlab/segmentd/internal/ingest"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		c := do.MustInvoke[*config.Config](i)
		m := do.MustInvoke[*ingest.Manager](i)
		return NewServer(c, m, func() StreamSession { return m.NewStream() }), nil
	})
}
