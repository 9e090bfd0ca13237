package ingest

import (
	"context"
	"log/slog"
	"time"
)

// RunJanitor purges abandoned staging files every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		slog.Info("temporary file janitor disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.purgeTemporary()
	for {
		select {
		case <-ctx.Done():
			slog.Info("temporary file janitor stopped")
			return
		case <-ticker.C:
			m.purgeTemporary()
		}
	}
}

func (m *Manager) purgeTemporary() {
	n, err := m.store.PurgeTemporary()
	if err != nil {
		slog.Warn("failed to purge temporary files", "error", err)
		return
	}
	if n > 0 {
		slog.Info("purged temporary files", "count", n)
	}
}
