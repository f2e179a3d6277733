// Package retry runs outbound operations with classified, bounded exponential backoff.
package retry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Policy defines retry behavior for a single call.
type Policy struct {
	MaxRetries        int           `yaml:"max_retries"`        // Retries after the first attempt
	BaseDelay         time.Duration `yaml:"base_delay"`         // Delay before the first retry
	MaxDelay          time.Duration `yaml:"max_delay"`          // Upper bound for any delay
	BackoffMultiplier float64       `yaml:"backoff_multiplier"` // Growth factor per retry
	Jitter            float64       `yaml:"jitter"`             // Fraction (0..1) shaved randomly off each delay
	RespectRetryAfter bool          `yaml:"respect_retry_after"`
}

// DefaultPolicy provides sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:        3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

var ErrInvalidPolicy = errors.New("invalid retry policy")

// Validate reports values that cannot be normalized.
func (p Policy) Validate() error {
	switch {
	case p.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must be >= 0, got %d", ErrInvalidPolicy, p.MaxRetries)
	case p.BaseDelay < 0:
		return fmt.Errorf("%w: base_delay must be positive, got %s", ErrInvalidPolicy, p.BaseDelay)
	case p.MaxDelay < 0:
		return fmt.Errorf("%w: max_delay must be positive, got %s", ErrInvalidPolicy, p.MaxDelay)
	case p.MaxDelay > 0 && p.BaseDelay > p.MaxDelay:
		return fmt.Errorf("%w: base_delay %s exceeds max_delay %s", ErrInvalidPolicy, p.BaseDelay, p.MaxDelay)
	case p.BackoffMultiplier != 0 && p.BackoffMultiplier <= 1:
		return fmt.Errorf("%w: backoff_multiplier must be > 1, got %g", ErrInvalidPolicy, p.BackoffMultiplier)
	case p.Jitter < 0 || p.Jitter > 1:
		return fmt.Errorf("%w: jitter must be within [0, 1], got %g", ErrInvalidPolicy, p.Jitter)
	}
	return nil
}

// normalized fills zero or out-of-range fields from DefaultPolicy.
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.BackoffMultiplier <= 1 {
		p.BackoffMultiplier = def.BackoffMultiplier
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = 0
	}
	return p
}

// Delay returns the wait before retry number attempt (0-based):
// min(BaseDelay * BackoffMultiplier^attempt, MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if math.IsNaN(delay) || math.IsInf(delay, 0) || delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}
