// Package ratelimit holds the admission controls in front of extraction
// jobs: a per-client auth failure limiter, a global request throttle and a
// concurrency gate.
package ratelimit

import (
	"sync"
	"time"
)

type FailureRecord struct {
	Count        int
	LastFailure  time.Time
	BlockedUntil time.Time
}

// FailureLimiter blocks a client after too many failed API key checks
// inside a window.
type FailureLimiter struct {
	mu             sync.RWMutex
	failures       map[string]*FailureRecord
	maxFailures    int
	windowDuration time.Duration
	blockDuration  time.Duration
	stop           chan struct{}
	stopOnce       sync.Once
}

func NewFailureLimiter(maxFailures int, windowDuration, blockDuration time.Duration) *FailureLimiter {
	limiter := &FailureLimiter{
		failures:       make(map[string]*FailureRecord),
		maxFailures:    maxFailures,
		windowDuration: windowDuration,
		blockDuration:  blockDuration,
		stop:           make(chan struct{}),
	}

	go limiter.cleanupLoop()

	return limiter
}

// Blocked reports whether clientID is currently locked out and for how long.
func (r *FailureLimiter) Blocked(clientID string) (bool, time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.failures[clientID]
	if !exists {
		return false, 0
	}

	now := time.Now()
	if now.Before(record.BlockedUntil) {
		return true, record.BlockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts one failed check and reports whether the client is
// now blocked.
func (r *FailureLimiter) RecordFailure(clientID string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	record, exists := r.failures[clientID]
	if !exists {
		record = &FailureRecord{}
		r.failures[clientID] = record
	}

	if now.Before(record.BlockedUntil) {
		return true, record.BlockedUntil.Sub(now)
	}

	if now.Sub(record.LastFailure) > r.windowDuration {
		record.Count = 0
	}

	record.Count++
	record.LastFailure = now

	if record.Count >= r.maxFailures {
		record.BlockedUntil = now.Add(r.blockDuration)
		record.Count = 0
		return true, r.blockDuration
	}

	return false, 0
}

func (r *FailureLimiter) Reset(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.failures, clientID)
}

// Stop ends the background cleanup goroutine.
func (r *FailureLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *FailureLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.cleanup(time.Now())
		}
	}
}

func (r *FailureLimiter) cleanup(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID, record := range r.failures {
		if now.Sub(record.LastFailure) > r.windowDuration*2 && now.After(record.BlockedUntil) {
			delete(r.failures, clientID)
		}
	}
}
