package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a token bucket shared by every extraction request. Each job
// can start several yt-dlp processes, so upstream platforms see bursts
// long before the host runs out of resources.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows perSecond requests with the given burst. A
// non-positive rate disables throttling.
func NewThrottle(perSecond float64, burst int) *Throttle {
	if perSecond <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow takes a token if one is available now. Otherwise it reports how
// long until the next token, without consuming anything.
func (t *Throttle) Allow() (bool, time.Duration) {
	res := t.limiter.Reserve()
	if !res.OK() {
		return false, time.Second
	}
	delay := res.Delay()
	if delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}
