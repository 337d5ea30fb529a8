package ratelimit

import (
	"golang.org/x/sync/semaphore"
)

// Gate bounds how many jobs run at once. It never queues: a caller that
// cannot get a slot is turned away.
type Gate struct {
	sem  *semaphore.Weighted
	size int64
}

// NewGate returns a gate with n slots. n <= 0 means unbounded.
func NewGate(n int) *Gate {
	if n <= 0 {
		return &Gate{}
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n)), size: int64(n)}
}

// TryEnter takes a slot. The returned release func must be called exactly
// once when ok is true.
func (g *Gate) TryEnter() (release func(), ok bool) {
	if g.sem == nil {
		return func() {}, true
	}
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	return func() { g.sem.Release(1) }, true
}

// Size reports the slot count, 0 when unbounded.
func (g *Gate) Size() int64 {
	return g.size
}
