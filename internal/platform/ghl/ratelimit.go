package ghl

import (
	"sync"
	"time"
)

const (
	// minInterval is the minimum spacing between outbound CRM calls.
	minInterval = 1500 * time.Millisecond
	// window is how long past call timestamps are remembered.
	window = 60 * time.Second
)

// RateLimiter spaces outbound calls at least minInterval apart, tracked over
// a sliding window. The current pipeline is sequential, but the limiter is
// mutex-guarded so the contract holds under concurrent callers too.
type RateLimiter struct {
	mu         sync.Mutex
	timestamps []time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewRateLimiter returns a limiter using the real clock.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{now: time.Now, sleep: time.Sleep}
}

// Acquire blocks until the minimum interval since the previous permitted
// call has elapsed, then records the call.
func (rl *RateLimiter) Acquire() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	// Forget timestamps older than the sliding window.
	kept := rl.timestamps[:0]
	for _, ts := range rl.timestamps {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	rl.timestamps = kept

	if n := len(rl.timestamps); n > 0 {
		if wait := minInterval - now.Sub(rl.timestamps[n-1]); wait > 0 {
			rl.sleep(wait)
		}
	}
	rl.timestamps = append(rl.timestamps, rl.now())
}
