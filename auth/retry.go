package auth

import "time"

// RetryPolicy bounds how authentication-expiry failures are retried.
// Non-auth failures are never retried automatically.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy retries once after re-acquiring credentials.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  time.Second,
	}
}

// Delay returns the exponential backoff before the given retry attempt,
// counted from zero.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay << uint(attempt)
}
