package metricwire

import (
	"context"
	"sync"
	"time"
)

// RateLimiter allows at most limit calls in any sliding window.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	recent []time.Time
	now    func() time.Time
}

// NewRateLimiter creates a sliding-window limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window, now: time.Now}
}

// Wait blocks until a call is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		delay := rl.reserve()
		if delay <= 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// reserve records a call and returns 0, or returns how long to wait
// before the oldest call leaves the window.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	kept := rl.recent[:0]
	for _, t := range rl.recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.recent = kept

	if len(rl.recent) < rl.limit {
		rl.recent = append(rl.recent, now)
		return 0
	}
	return rl.recent[0].Add(rl.window).Sub(now) + time.Millisecond
}
