package worker

import (
	"github.com/foxseedlab/segmentd/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Pool, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewPool(c.WorkerPoolSize), nil
	})
}
