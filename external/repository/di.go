package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/segmentd/internal/config"
	"github.com/foxseedlab/segmentd/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const (
	databaseInitTimeout = 15 * time.Second
	sqliteScheme        = "sqlite://"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.SegmentIndex, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		index, err := Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := index.Init(ctx); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		return index, nil
	})
}

// Open picks the backend from the URL scheme: sqlite://<path> or a PostgreSQL URL.
func Open(ctx context.Context, databaseURL string) (repository.SegmentIndex, error) {
	if path, ok := strings.CutPrefix(databaseURL, sqliteScheme); ok {
		r, err := OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return r, nil
	}

	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresRepository(p), nil
}
