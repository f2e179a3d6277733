package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/vietddude/toolgate/internal/core/domain"
	"github.com/vietddude/toolgate/internal/core/failure"
	"github.com/vietddude/toolgate/internal/infra/storage"
)

// FailureLogRepo implements storage.FailureLogRepository using PostgreSQL.
type FailureLogRepo struct {
	db *DB
}

// NewFailureLogRepo creates a new PostgreSQL failure log repository.
func NewFailureLogRepo(db *DB) *FailureLogRepo {
	return &FailureLogRepo{db: db}
}

type failureRow struct {
	ID              string         `db:"id"`
	RequestID       string         `db:"request_id"`
	Operation       string         `db:"operation"`
	Kind            string         `db:"kind"`
	Message         string         `db:"message"`
	SuggestedAction string         `db:"suggested_action"`
	ErrorCode       string         `db:"error_code"`
	StatusCode      int            `db:"status_code"`
	Retryable       bool           `db:"retryable"`
	Attempts        int            `db:"attempts"`
	AttemptErrors   pq.StringArray `db:"attempt_errors"`
	CreatedAt       time.Time      `db:"created_at"`
}

// Record inserts a failure record.
func (r *FailureLogRepo) Record(ctx context.Context, rec *domain.FailureRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO failure_log (id, request_id, operation, kind, message, suggested_action,
			error_code, status_code, retryable, attempts, attempt_errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	attemptErrors := rec.AttemptErrors
	if attemptErrors == nil {
		attemptErrors = []string{}
	}
	_, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.RequestID,
		rec.Operation,
		string(rec.Kind),
		rec.Message,
		rec.SuggestedAction,
		rec.ErrorCode,
		rec.StatusCode,
		rec.Retryable,
		rec.Attempts,
		pq.Array(attemptErrors),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// Recent returns the newest failure records first.
func (r *FailureLogRepo) Recent(ctx context.Context, limit int) ([]*domain.FailureRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultRecentLimit
	}
	query := `
		SELECT id, request_id, operation, kind, message, suggested_action,
			error_code, status_code, retryable, attempts, attempt_errors, created_at
		FROM failure_log
		ORDER BY created_at DESC
		LIMIT $1
	`

	var rows []failureRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent failures: %w", err)
	}

	records := make([]*domain.FailureRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &domain.FailureRecord{
			ID:              row.ID,
			RequestID:       row.RequestID,
			Operation:       row.Operation,
			Kind:            failure.Kind(row.Kind),
			Message:         row.Message,
			SuggestedAction: row.SuggestedAction,
			ErrorCode:       row.ErrorCode,
			StatusCode:      row.StatusCode,
			Retryable:       row.Retryable,
			Attempts:        row.Attempts,
			AttemptErrors:   []string(row.AttemptErrors),
			CreatedAt:       row.CreatedAt,
		})
	}
	return records, nil
}

// CountByKind returns the number of failure records per kind.
func (r *FailureLogRepo) CountByKind(ctx context.Context) (map[failure.Kind]int, error) {
	query := `SELECT kind, COUNT(*) AS count FROM failure_log GROUP BY kind`

	var rows []struct {
		Kind  string `db:"kind"`
		Count int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count failures: %w", err)
	}

	counts := make(map[failure.Kind]int, len(rows))
	for _, row := range rows {
		counts[failure.Kind(row.Kind)] = row.Count
	}
	return counts, nil
}

// Prune deletes failure records older than the cutoff.
func (r *FailureLogRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM failure_log WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune failures: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned failures: %w", err)
	}
	return int(n), nil
}
