package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/toolgate/internal/infra/storage"
)

// Pruner deletes failure log records older than the retention period.
type Pruner struct {
	retention time.Duration
	repo      storage.FailureLogRepository
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, repo storage.FailureLogRepository) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check every 10% of the retention period, between 1 minute and 1 hour.
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs a single pass.
func (p *Pruner) Prune(ctx context.Context) int {
	removed, err := p.repo.Prune(ctx, time.Now().Add(-p.retention))
	if err != nil {
		slog.Error("Failed to prune failure log", "error", err)
		return 0
	}
	if removed > 0 {
		slog.Info("Pruned failure log", "removed", removed, "retention", p.retention)
	}
	return removed
}
