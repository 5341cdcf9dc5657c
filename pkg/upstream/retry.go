package upstream

import "time"

// RetryPolicy defines retry behavior for upstream calls.
// It is a plain value object so every outbound call site can be decorated
// explicitly instead of mutating a shared client.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries for transient failures
	// (5xx, 429, network-level). A 401 re-auth retry is not counted here.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Backoff calculates the backoff duration before the given retry attempt.
// Attempt 0 is the first retry.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * p.BackoffFactor)
		if backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}
