package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/toolgate/internal/core/domain"
	"github.com/vietddude/toolgate/internal/core/failure"
	"github.com/vietddude/toolgate/internal/infra/storage/memory"
	"github.com/vietddude/toolgate/internal/infra/vendor"
)

type stubExecutor struct {
	fail  map[string]error
	calls []string
}

func (s *stubExecutor) ExecuteTool(ctx context.Context, tool string, req vendor.ExecuteRequest) (*vendor.ExecuteResult, error) {
	s.calls = append(s.calls, tool)
	if err := s.fail[tool]; err != nil {
		return nil, err
	}
	return &vendor.ExecuteResult{Successful: true}, nil
}

func pushLetter(t *testing.T, repo *memory.DeadLetterRepo, tool string, attempts int) *domain.DeadLetter {
	t.Helper()
	body, err := json.Marshal(vendor.ExecuteRequest{Input: map[string]any{"k": "v"}})
	require.NoError(t, err)
	dl := &domain.DeadLetter{Operation: vendor.OpExecuteTool, Tool: tool, Request: body, Attempts: attempts}
	require.NoError(t, repo.Push(context.Background(), dl))
	return dl
}

func TestReplayer_ReplayAll(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewDeadLetterRepo(memory.NewMemoryStorage())
	exec := &stubExecutor{fail: map[string]error{
		"BROKEN": failure.Classify(failure.RawFailure{Status: 503}),
	}}

	pushLetter(t, repo, "OK", 0)
	broken := pushLetter(t, repo, "BROKEN", 1)
	pushLetter(t, repo, "EXHAUSTED", 3)

	res, err := NewReplayer(repo, exec, 0, 3).ReplayAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReplayResult{Resolved: 1, Failed: 1, Skipped: 1}, res)
	assert.ElementsMatch(t, []string{"OK", "BROKEN"}, exec.calls)

	left, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, left, 2)
	for _, dl := range left {
		if dl.ID == broken.ID {
			assert.Equal(t, 2, dl.Attempts)
			assert.Equal(t, failure.KindServerError, dl.LastError.Kind)
		}
	}
}

func TestReplayer_SkipsUnreadableRequest(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewDeadLetterRepo(memory.NewMemoryStorage())
	require.NoError(t, repo.Push(ctx, &domain.DeadLetter{Tool: "X", Request: json.RawMessage(`"nope"`)}))

	exec := &stubExecutor{}
	res, err := NewReplayer(repo, exec, 0, 0).ReplayAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, exec.calls)
}

func TestPruner_Prune(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFailureLogRepo(memory.NewMemoryStorage())
	require.NoError(t, repo.Record(ctx, &domain.FailureRecord{Kind: failure.KindAuth, CreatedAt: time.Now().Add(-2 * time.Hour)}))
	require.NoError(t, repo.Record(ctx, &domain.FailureRecord{Kind: failure.KindAuth}))

	assert.Equal(t, 1, NewPruner(time.Hour, repo).Prune(ctx))
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewPruner(0, memory.NewFailureLogRepo(memory.NewMemoryStorage())).Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled pruner should return immediately")
	}
}
