package retry

import (
	"context"
	"sync"

	"github.com/vietddude/toolgate/internal/core/failure"
)

// Trace collects the failed attempts of every Do call made with its context.
// It is safe for concurrent use.
type Trace struct {
	mu       sync.Mutex
	attempts int
	failures []*failure.Descriptor
}

type traceKey struct{}

// NewTrace creates an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// WithTrace returns a context whose Do calls record into t.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

func traceFrom(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}

func (t *Trace) record(d *failure.Descriptor) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	if d != nil {
		t.failures = append(t.failures, d)
	}
}

// Attempts returns the number of operation invocations seen.
func (t *Trace) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Failures returns the descriptors of failed attempts in order.
func (t *Trace) Failures() []*failure.Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*failure.Descriptor, len(t.failures))
	copy(out, t.failures)
	return out
}

// Messages returns one line per failed attempt.
func (t *Trace) Messages() []string {
	failures := t.Failures()
	out := make([]string, len(failures))
	for i, d := range failures {
		out[i] = d.Error()
	}
	return out
}
