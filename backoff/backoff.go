// Package backoff provides pluggable delay strategies for the executor's
// receive loop. All strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before retry attempt n (1-indexed).
// Attempt 1 is the first retry after the initial failure.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay regardless of attempt number.
// This is the executor's default: a receive failure is almost always a
// queue/network blip, and a fixed pause before the next poll is enough.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(attempt-1), Max)].
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// DefaultStrategy returns the executor's default receive backoff:
// constant 5 seconds.
func DefaultStrategy() Strategy {
	return NewConstant(5 * time.Second)
}
