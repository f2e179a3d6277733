package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/toolgate/internal/core/domain"
	"github.com/vietddude/toolgate/internal/core/failure"
	"github.com/vietddude/toolgate/internal/infra/storage"
)

type MemoryStorage struct {
	failures []*domain.FailureRecord
	dead     map[string]*domain.DeadLetter
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		dead: make(map[string]*domain.DeadLetter),
	}
}

// -----------------------------------------------------------------------------
// Failure Log Repository
// -----------------------------------------------------------------------------

type FailureLogRepo struct {
	store *MemoryStorage
}

func NewFailureLogRepo(store *MemoryStorage) *FailureLogRepo {
	return &FailureLogRepo{store: store}
}

func (r *FailureLogRepo) Record(ctx context.Context, rec *domain.FailureRecord) error {
	if rec == nil {
		return fmt.Errorf("nil failure record")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	cp := *rec
	cp.AttemptErrors = append([]string(nil), rec.AttemptErrors...)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.failures = append(r.store.failures, &cp)
	return nil
}

func (r *FailureLogRepo) Recent(ctx context.Context, limit int) ([]*domain.FailureRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultRecentLimit
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.FailureRecord, 0, min(limit, len(r.store.failures)))
	for i := len(r.store.failures) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.store.failures[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *FailureLogRepo) CountByKind(ctx context.Context) (map[failure.Kind]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[failure.Kind]int)
	for _, rec := range r.store.failures {
		counts[rec.Kind]++
	}
	return counts, nil
}

func (r *FailureLogRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.failures[:0]
	for _, rec := range r.store.failures {
		if rec.CreatedAt.Before(before) {
			continue
		}
		kept = append(kept, rec)
	}
	removed := len(r.store.failures) - len(kept)
	r.store.failures = kept
	return removed, nil
}

// -----------------------------------------------------------------------------
// Dead Letter Repository
// -----------------------------------------------------------------------------

type DeadLetterRepo struct {
	store *MemoryStorage
}

func NewDeadLetterRepo(store *MemoryStorage) *DeadLetterRepo {
	return &DeadLetterRepo{store: store}
}

func (r *DeadLetterRepo) Push(ctx context.Context, dl *domain.DeadLetter) error {
	if dl == nil {
		return fmt.Errorf("nil dead letter")
	}
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
	cp := *dl

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.dead[dl.ID] = &cp
	return nil
}

func (r *DeadLetterRepo) Next(ctx context.Context) (*domain.DeadLetter, error) {
	pending := r.pending()
	if len(pending) == 0 {
		return nil, nil
	}
	return pending[0], nil
}

func (r *DeadLetterRepo) List(ctx context.Context) ([]*domain.DeadLetter, error) {
	return r.pending(), nil
}

func (r *DeadLetterRepo) IncrementAttempt(ctx context.Context, id string, lastErr *failure.Descriptor) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	dl, ok := r.store.dead[id]
	if !ok {
		return storage.ErrDeadLetterNotFound
	}
	dl.Attempts++
	dl.LastAttempt = time.Now()
	if lastErr != nil {
		dl.LastError = lastErr
	}
	return nil
}

func (r *DeadLetterRepo) Resolve(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.dead[id]; !ok {
		return storage.ErrDeadLetterNotFound
	}
	delete(r.store.dead, id)
	return nil
}

func (r *DeadLetterRepo) Count(ctx context.Context) (int, error) {
	return len(r.pending()), nil
}

// pending returns copies ordered by attempts, then age.
func (r *DeadLetterRepo) pending() []*domain.DeadLetter {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.DeadLetter, 0, len(r.store.dead))
	for _, dl := range r.store.dead {
		if dl.Status != domain.DeadLetterStatusPending {
			continue
		}
		cp := *dl
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Attempts != out[j].Attempts {
			return out[i].Attempts < out[j].Attempts
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
