package engine

import "time"

// RetryConfig controls per-action retry behaviour for transient failures.
type RetryConfig struct {
	MaxAttempts      int
	RetryIntervalMin time.Duration
	RetryIntervalMax time.Duration
}

// BackoffInterval returns the wait before the next invocation after the
// given attempt number: exponential doubling from the minimum, capped at the
// maximum.
func (rc *RetryConfig) BackoffInterval(attempt int) time.Duration {
	if attempt <= 1 {
		return rc.RetryIntervalMin
	}
	interval := rc.RetryIntervalMin
	for i := 1; i < attempt; i++ {
		interval *= 2
		if interval >= rc.RetryIntervalMax {
			return rc.RetryIntervalMax
		}
	}
	return interval
}
