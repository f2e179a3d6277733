package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vietddude/toolgate/internal/core/failure"
	"github.com/vietddude/toolgate/internal/infra/storage"
	"github.com/vietddude/toolgate/internal/infra/vendor"
)

// ToolExecutor runs a tool against the vendor.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, tool string, req vendor.ExecuteRequest) (*vendor.ExecuteResult, error)
}

// ReplayResult summarizes one replay pass.
type ReplayResult struct {
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Replayer re-runs dead-lettered tool executions through the vendor client,
// which applies its own retry policy to each one.
type Replayer struct {
	repo        storage.DeadLetterRepository
	exec        ToolExecutor
	interval    time.Duration
	maxAttempts int
	log         *slog.Logger
}

// NewReplayer creates a new Replayer. Letters that already failed
// maxAttempts replays are left in the queue for manual inspection.
func NewReplayer(repo storage.DeadLetterRepository, exec ToolExecutor, interval time.Duration, maxAttempts int) *Replayer {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Replayer{
		repo:        repo,
		exec:        exec,
		interval:    interval,
		maxAttempts: maxAttempts,
		log:         slog.Default().With("component", "replayer"),
	}
}

// Start runs the replay loop. A non-positive interval disables it.
func (r *Replayer) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReplayAll(ctx); err != nil {
				r.log.Error("Replay pass failed", "error", err)
			}
		}
	}
}

// ReplayAll replays every pending letter once.
func (r *Replayer) ReplayAll(ctx context.Context) (ReplayResult, error) {
	var res ReplayResult

	letters, err := r.repo.List(ctx)
	if err != nil {
		return res, err
	}

	for _, dl := range letters {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if dl.Attempts >= r.maxAttempts {
			res.Skipped++
			continue
		}

		var req vendor.ExecuteRequest
		if err := json.Unmarshal(dl.Request, &req); err != nil {
			r.log.Warn("Dead letter has unreadable request", "id", dl.ID, "error", err)
			res.Skipped++
			continue
		}

		if _, err := r.exec.ExecuteTool(ctx, dl.Tool, req); err != nil {
			d := failure.ClassifyError(err)
			r.log.Warn("Replay failed",
				"id", dl.ID,
				"tool", dl.Tool,
				"kind", d.Kind,
				"attempts", dl.Attempts+1,
				"error", d.Message,
			)
			if err := r.repo.IncrementAttempt(ctx, dl.ID, d); err != nil {
				return res, err
			}
			res.Failed++
			continue
		}

		if err := r.repo.Resolve(ctx, dl.ID); err != nil {
			return res, err
		}
		r.log.Info("Replayed dead letter", "id", dl.ID, "tool", dl.Tool)
		res.Resolved++
	}

	return res, nil
}
