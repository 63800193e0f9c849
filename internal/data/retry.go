package data

import "time"

// RetryPolicy controls how a provider retries upstream requests whose data
// has not populated yet. The gateway often reports prices a beat before
// model Greeks, so a short progressive backoff recovers most gaps.
//
// The policy is injected rather than hardcoded so tests can substitute a
// zero-delay schedule.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration // attempt is 0-based
}

// DefaultRetryPolicy retries three times with progressive waits
// (1.0s, 1.5s, 2.0s).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(float64(time.Second) * (1 + 0.5*float64(attempt)))
		},
	}
}

// NoDelayRetryPolicy retries the given number of times with no waiting.
// Intended for tests and synthetic providers.
func NoDelayRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     func(int) time.Duration { return 0 },
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) sleep(attempt int) {
	if p.Backoff == nil {
		return
	}
	if d := p.Backoff(attempt); d > 0 {
		time.Sleep(d)
	}
}
