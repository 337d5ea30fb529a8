package service

import (
	"math/rand/v2"
	"time"
)

// Backoff computes the wait before a rate-limited attempt is retried:
// Base * Factor^attempt, capped at Max. Jitter only ever lengthens a wait,
// by up to half again, and is applied before the cap, so waits stay within
// [min(curve, Max), Max].
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter bool
}

func NewBackoff(base, max time.Duration, factor float64) *Backoff {
	return &Backoff{
		Base:   base,
		Max:    max,
		Factor: factor,
	}
}

func (b *Backoff) Duration(attempt int) time.Duration {
	if attempt <= 0 {
		return b.Base
	}

	duration := float64(b.Base) * pow(b.Factor, attempt)

	if b.Jitter {
		duration = duration * (1 + rand.Float64()*0.5)
	}

	if b.Max > 0 && duration > float64(b.Max) {
		duration = float64(b.Max)
	}

	return time.Duration(duration)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
