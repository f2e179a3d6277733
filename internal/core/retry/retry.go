package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/vietddude/toolgate/internal/core/failure"
	"github.com/vietddude/toolgate/internal/metrics"
)

// Operation is a single attempt of an outbound call.
type Operation[T any] func(ctx context.Context) (T, error)

// Attempt describes a retry that is about to happen.
type Attempt struct {
	Name   string
	Number int // 1 for the first retry
	Delay  time.Duration
	Err    *failure.Descriptor
}

type options struct {
	name    string
	logger  *slog.Logger
	onRetry func(Attempt)
}

// Option customizes a Do call.
type Option func(*options)

// WithName labels logs and metrics for the call.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOnRetry registers a callback invoked before each retry wait.
func WithOnRetry(fn func(Attempt)) Option {
	return func(o *options) { o.onRetry = fn }
}

// Do executes op, retrying retryable failures with exponential backoff.
// Every non-nil error returned is a *failure.Descriptor describing the last
// failed attempt. Cancelling ctx stops further attempts and surfaces a
// network-kind descriptor.
func Do[T any](ctx context.Context, policy Policy, op Operation[T], opts ...Option) (T, error) {
	o := options{name: "operation", logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	p := policy.normalized()

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, failure.ClassifyError(err)
	}

	var (
		result  T
		last    *failure.Descriptor
		retries int
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if retries >= p.MaxRetries {
			return 0, true
		}
		delay := p.wait(retries, last)
		retries++

		metrics.RetriesTotal.WithLabelValues(o.name, string(last.Kind)).Inc()
		o.logger.Warn("Retrying operation",
			"operation", o.name,
			"attempt", retries,
			"max_retries", p.MaxRetries,
			"kind", last.Kind,
			"delay", delay,
			"error", last.Message,
		)
		if o.onRetry != nil {
			o.onRetry(Attempt{Name: o.name, Number: retries, Delay: delay, Err: last})
		}
		return delay, false
	})

	trace := traceFrom(ctx)
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := op(ctx)
		if err == nil {
			trace.record(nil)
			result = v
			return nil
		}

		last = failure.ClassifyError(err)
		trace.record(last)
		if ctx.Err() != nil {
			// The caller gave up; report it as such instead of the attempt's own failure.
			last = failure.ClassifyError(ctx.Err())
			return errStop
		}
		if last.Retryable() {
			return goretry.RetryableError(errAgain)
		}
		return errStop
	})
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, errStop), errors.Is(err, errAgain):
		return zero, last
	}
	// Context ended before or between attempts.
	return zero, failure.ClassifyError(err)
}

// attemptError is the only error go-retry sees from an attempt. It has no
// Unwrap, so a RetryableError buried in the operation's own error cannot
// override the classifier's decision.
type attemptError string

func (e attemptError) Error() string { return string(e) }

const (
	errStop  attemptError = "retry: stop"
	errAgain attemptError = "retry: again"
)

// wait computes the delay before retry number attempt, applying jitter and
// the upstream retry hint without exceeding MaxDelay.
func (p Policy) wait(attempt int, last *failure.Descriptor) time.Duration {
	delay := p.Delay(attempt)
	if p.RespectRetryAfter && last != nil && last.RetryAfter > delay {
		delay = min(last.RetryAfter, p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay -= time.Duration(rand.Float64() * p.Jitter * float64(delay))
	}
	return delay
}
