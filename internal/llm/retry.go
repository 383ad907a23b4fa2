package llm

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy decides how often and how long to retry a failed call.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff returns the wait before the given retry (1 for the first retry).
	Backoff func(attempt int) time.Duration
	// Retryable reports whether err is worth another attempt.
	Retryable func(err error) bool
}

// LinearBackoff waits base*attempt.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration { return base * time.Duration(attempt) }
}

// RetryOnStatus retries upstream errors with one of the given HTTP statuses
// and transport failures that never reached the provider. Context
// cancellation is never retried.
func RetryOnStatus(statuses ...int) func(error) bool {
	set := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return func(err error) bool {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var ue *UpstreamError
		if !errors.As(err, &ue) {
			return false
		}
		return ue.StatusCode == 0 || set[ue.StatusCode]
	}
}

// DefaultRetryPolicy retries 502 and 503 up to three attempts, waiting
// base, then 2*base.
func DefaultRetryPolicy(base time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(base),
		Retryable:   RetryOnStatus(502, 503),
	}
}

// RetryProvider is a decorator that retries transient errors.
type RetryProvider struct {
	inner  Provider
	policy RetryPolicy
}

// WithRetry wraps a Provider with retry logic.
func WithRetry(p Provider, policy RetryPolicy) Provider {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Backoff == nil {
		policy.Backoff = LinearBackoff(time.Second)
	}
	if policy.Retryable == nil {
		policy.Retryable = RetryOnStatus(502, 503)
	}
	return &RetryProvider{inner: p, policy: policy}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !r.policy.Retryable(err) || attempt == r.policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.policy.Backoff(attempt)):
		}
	}
	return nil, lastErr
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}
