package runner

import (
	"math"
	"time"
)

// RetryStrategy encapsulates the decision and delay between retries.
type RetryStrategy interface {
	// SleepDuration returns how long to wait before the next retry attempt.
	// The attempt index starts at 0, incrementing after each failure.
	SleepDuration(attempt int, err error) time.Duration
}

// RetryDecision is the outcome of a retry check.
type RetryDecision struct {
	ShouldRetry bool
	Delay       time.Duration
	Metadata    map[string]any
}

// RetryDecider is implemented by strategies that can refuse a retry,
// for example when the error is not transient.
type RetryDecider interface {
	Decide(attempt int, err error) RetryDecision
}

// DecideRetry asks strategy for a decision. Strategies that only know
// delays always retry.
func DecideRetry(strategy RetryStrategy, attempt int, err error) RetryDecision {
	if strategy == nil {
		return RetryDecision{ShouldRetry: true}
	}
	if d, ok := strategy.(RetryDecider); ok {
		return d.Decide(attempt, err)
	}
	return RetryDecision{
		ShouldRetry: true,
		Delay:       strategy.SleepDuration(attempt, err),
	}
}

// NoDelayStrategy is a simple retry strategy that performs all retries
// immediately without waiting.
type NoDelayStrategy struct{}

// SleepDuration always returns zero, causing immediate retries.
func (n NoDelayStrategy) SleepDuration(_ int, _ error) time.Duration {
	return 0
}

// ExponentialBackoffStrategy implements a backoff strategy.
//
//	WithRetryStrategy(ExponentialBackoffStrategy{
//	    Base:   100 * time.Millisecond,
//	    Factor: 2,
//	    Max:    5 * time.Second,
//	})
type ExponentialBackoffStrategy struct {
	Base   time.Duration
	Factor float64
	// Max caps the delay, zero means no cap
	Max time.Duration
}

func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(e.Base) * math.Pow(e.Factor, float64(attempt))
	if time.Duration(delay) > e.Max && e.Max > 0 {
		return e.Max
	}
	return time.Duration(delay)
}

// PermanentStrategy wraps a strategy and stops retrying when Permanent
// reports the error as not worth another attempt.
type PermanentStrategy struct {
	Strategy  RetryStrategy
	Permanent func(error) bool
}

func (p PermanentStrategy) SleepDuration(attempt int, err error) time.Duration {
	if p.Strategy == nil {
		return 0
	}
	return p.Strategy.SleepDuration(attempt, err)
}

func (p PermanentStrategy) Decide(attempt int, err error) RetryDecision {
	if p.Permanent != nil && p.Permanent(err) {
		return RetryDecision{
			ShouldRetry: false,
			Metadata:    map[string]any{"permanent": true},
		}
	}
	return RetryDecision{ShouldRetry: true, Delay: p.SleepDuration(attempt, err)}
}
