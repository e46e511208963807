// Package resilience provides retry and circuit breaking for calls to
// external providers.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls how a call is retried.
type Policy struct {
	// Attempts is the total number of tries including the first. Values
	// below 1 mean one try.
	Attempts int
	Base     time.Duration
	Max      time.Duration
	Factor   float64
	// Jitter spreads each delay by up to ±Jitter of its length.
	Jitter float64
	// Retryable decides whether an error is worth another try. Defaults to
	// IsTransient.
	Retryable func(error) bool
	OnRetry   func(attempt int, err error)
}

// DefaultPolicy retries transient failures three times with backoff from
// 500ms to 30s.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Base:     500 * time.Millisecond,
		Max:      30 * time.Second,
		Factor:   2,
		Jitter:   0.25,
	}
}

// Once is a policy that retries a single time, for calls where a second
// failure should degrade rather than wait.
func Once(retryable func(error) bool) Policy {
	p := DefaultPolicy()
	p.Attempts = 2
	p.Retryable = retryable
	return p
}

// NewPolicy builds a policy from configuration values; zero values keep the
// defaults.
func NewPolicy(attempts, baseMs, maxMs int) Policy {
	p := DefaultPolicy()
	if attempts > 0 {
		p.Attempts = attempts
	}
	if baseMs > 0 {
		p.Base = time.Duration(baseMs) * time.Millisecond
	}
	if maxMs > 0 {
		p.Max = time.Duration(maxMs) * time.Millisecond
	}
	return p
}

// Delay returns the wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	base, maxDelay, factor := p.Base, p.Max, p.Factor
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	if factor <= 0 {
		factor = 2
	}
	d := math.Min(float64(base)*math.Pow(factor, float64(attempt)), float64(maxDelay))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(d, 0))
}

// Retry runs fn until it succeeds, returns a non-retryable error, runs out
// of attempts or ctx is done. It returns the last error.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := RetryValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryValue is Retry for calls that produce a value.
func RetryValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	attempts := max(p.Attempts, 1)

	var zero T
	for i := 0; ; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if i+1 >= attempts || ctx.Err() != nil || !retryable(err) {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(i+1, err)
		}
		t := time.NewTimer(p.Delay(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, err
		case <-t.C:
		}
	}
}

// LogRetries returns an OnRetry hook that logs each retry.
func LogRetries(provider, op string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying provider call",
			zap.String("provider", provider),
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
