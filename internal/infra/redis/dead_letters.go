package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/toolgate/internal/core/domain"
	"github.com/vietddude/toolgate/internal/core/failure"
	"github.com/vietddude/toolgate/internal/infra/storage"
)

// DefaultRetention is how long a dead letter's payload is kept.
const DefaultRetention = 7 * 24 * time.Hour

// DeadLetterRepo implements storage.DeadLetterRepository using Redis.
// Pending IDs live in a sorted set scored by attempts; payloads are JSON strings.
type DeadLetterRepo struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// NewDeadLetterRepo creates a new Redis-backed dead-letter repository.
func NewDeadLetterRepo(client *Client, prefix string, retention time.Duration) *DeadLetterRepo {
	if prefix == "" {
		prefix = "toolgate"
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &DeadLetterRepo{
		rdb:       client.rdb,
		prefix:    prefix,
		retention: retention,
	}
}

// Key helpers
func (r *DeadLetterRepo) queueKey() string {
	return fmt.Sprintf("%s:dead_letters", r.prefix)
}

func (r *DeadLetterRepo) letterKey(id string) string {
	return fmt.Sprintf("%s:dead_letter:%s", r.prefix, id)
}

// Push adds a dead letter to the queue.
func (r *DeadLetterRepo) Push(ctx context.Context, dl *domain.DeadLetter) error {
	now := time.Now()
	if dl.ID == "" {
		dl.ID = uuid.NewString()
	}
	if dl.Status == "" {
		dl.Status = domain.DeadLetterStatusPending
	}
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = now
	}
	if dl.LastAttempt.IsZero() {
		dl.LastAttempt = now
	}
	return r.save(ctx, dl)
}

func (r *DeadLetterRepo) save(ctx context.Context, dl *domain.DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.letterKey(dl.ID), data, r.retention)
		// Lower attempts are replayed first.
		pipe.ZAdd(ctx, r.queueKey(), redis.Z{
			Score:  float64(dl.Attempts),
			Member: dl.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save dead letter: %w", err)
	}
	return nil
}

func (r *DeadLetterRepo) load(ctx context.Context, id string) (*domain.DeadLetter, error) {
	data, err := r.rdb.Get(ctx, r.letterKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrDeadLetterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter: %w", err)
	}

	var dl domain.DeadLetter
	if err := json.Unmarshal(data, &dl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dead letter: %w", err)
	}
	return &dl, nil
}

// Next retrieves the pending dead letter with the fewest attempts.
func (r *DeadLetterRepo) Next(ctx context.Context) (*domain.DeadLetter, error) {
	for {
		ids, err := r.rdb.ZRange(ctx, r.queueKey(), 0, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("zrange failed: %w", err)
		}
		if len(ids) == 0 {
			return nil, nil
		}

		dl, err := r.load(ctx, ids[0])
		if errors.Is(err, storage.ErrDeadLetterNotFound) {
			// Payload expired but ID still queued.
			if err := r.rdb.ZRem(ctx, r.queueKey(), ids[0]).Err(); err != nil {
				return nil, fmt.Errorf("zrem failed: %w", err)
			}
			continue
		}
		return dl, err
	}
}

// List retrieves all pending dead letters.
func (r *DeadLetterRepo) List(ctx context.Context) ([]*domain.DeadLetter, error) {
	ids, err := r.liveIDs(ctx)
	if err != nil {
		return nil, err
	}

	letters := make([]*domain.DeadLetter, 0, len(ids))
	for _, id := range ids {
		dl, err := r.load(ctx, id)
		if errors.Is(err, storage.ErrDeadLetterNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		letters = append(letters, dl)
	}
	return letters, nil
}

// liveIDs returns queued IDs whose payload still exists, in queue order,
// and drops the ones whose payload has expired.
func (r *DeadLetterRepo) liveIDs(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.ZRange(ctx, r.queueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	exists := make([]*redis.IntCmd, len(ids))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			exists[i] = pipe.Exists(ctx, r.letterKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check dead letters: %w", err)
	}

	live := make([]string, 0, len(ids))
	var stale []any
	for i, id := range ids {
		if exists[i].Val() == 0 {
			stale = append(stale, id)
			continue
		}
		live = append(live, id)
	}
	if len(stale) > 0 {
		if err := r.rdb.ZRem(ctx, r.queueKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("zrem failed: %w", err)
		}
	}
	return live, nil
}

// IncrementAttempt bumps the attempt count and moves the letter back in the queue.
func (r *DeadLetterRepo) IncrementAttempt(ctx context.Context, id string, lastErr *failure.Descriptor) error {
	dl, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	dl.Attempts++
	dl.LastAttempt = time.Now()
	if lastErr != nil {
		dl.LastError = lastErr
	}
	return r.save(ctx, dl)
}

// Resolve removes a dead letter (successfully replayed).
func (r *DeadLetterRepo) Resolve(ctx context.Context, id string) error {
	removed, err := r.rdb.ZRem(ctx, r.queueKey(), id).Result()
	if err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}
	if err := r.rdb.Del(ctx, r.letterKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete dead letter: %w", err)
	}
	if removed == 0 {
		return storage.ErrDeadLetterNotFound
	}
	return nil
}

// Count returns the number of queued dead letters whose payload has not expired.
func (r *DeadLetterRepo) Count(ctx context.Context) (int, error) {
	ids, err := r.liveIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
