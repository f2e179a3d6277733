package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/toolgate/internal/core/domain"
	"github.com/vietddude/toolgate/internal/core/failure"
)

var (
	// ErrDeadLetterNotFound is returned when a dead letter doesn't exist
	ErrDeadLetterNotFound = errors.New("dead letter not found")
)

// FailureLogRepository stores surfaced failures for later inspection
type FailureLogRepository interface {
	// Record appends a failure; it fills ID and CreatedAt when empty
	Record(ctx context.Context, rec *domain.FailureRecord) error

	// Recent returns the newest records first
	Recent(ctx context.Context, limit int) ([]*domain.FailureRecord, error)

	// CountByKind returns the number of records per kind
	CountByKind(ctx context.Context) (map[failure.Kind]int, error)

	// Prune deletes records created before the cutoff and returns how many were removed
	Prune(ctx context.Context, before time.Time) (int, error)
}

// DeadLetterRepository handles the queue of tool executions that exhausted their retries
type DeadLetterRepository interface {
	// Push adds a dead letter; it fills ID, Status and timestamps when empty
	Push(ctx context.Context, dl *domain.DeadLetter) error

	// Next retrieves the pending dead letter with the fewest attempts
	Next(ctx context.Context) (*domain.DeadLetter, error)

	// List retrieves all pending dead letters, fewest attempts first
	List(ctx context.Context) ([]*domain.DeadLetter, error)

	// IncrementAttempt records a failed replay
	IncrementAttempt(ctx context.Context, id string, lastErr *failure.Descriptor) error

	// Resolve removes a dead letter (successfully replayed)
	Resolve(ctx context.Context, id string) error

	// Count returns the number of pending dead letters
	Count(ctx context.Context) (int, error)
}

// DefaultRecentLimit caps Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 50
