// Package ratelimit provides the fixed-window counters behind the intake
// pipeline's per-source limit.
//
// A Store atomically reads, resets (when the window has elapsed), and
// increments a counter keyed by an arbitrary string, returning the new count
// together with the start of the current window. The decision logic lives in
// Limiter so that any Store (process-local or shared) enforces the same rule:
//
//	count > Max  ->  reject, retry after ceil((windowStart + Window - now) / 1s)
//
// Every call mutates the counter, including rejected ones.
package ratelimit

import (
	"context"
	"time"
)

// Store is a fixed-window counter store.
//
// Increment must be atomic per key: when now is strictly after
// windowStart+window the counter restarts at 1 with windowStart=now,
// otherwise it is incremented and windowStart is kept.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (count int, windowStart time.Time, err error)
}

// Decision is the outcome of a single Limiter.Allow call.
type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter int // whole seconds; zero when Allowed
}

// Limiter applies a max-per-window policy on top of a Store.
type Limiter struct {
	Store  Store
	Max    int
	Window time.Duration
}

// NewLimiter returns a Limiter; max <= 0 is coerced to 1 and window <= 0 to one minute.
func NewLimiter(store Store, max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{Store: store, Max: max, Window: window}
}

// Allow records one hit for key at now and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	count, start, err := l.Store.Increment(ctx, key, l.Window, now)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	if count <= l.Max {
		return Decision{Allowed: true, Count: count}, nil
	}
	return Decision{
		Allowed:    false,
		Count:      count,
		RetryAfter: RetryAfter(start, l.Window, now),
	}, nil
}

// RetryAfter returns ceil((windowStart + window - now) / 1s), never less than 1.
func RetryAfter(windowStart time.Time, window time.Duration, now time.Time) int {
	remaining := windowStart.Add(window).Sub(now).Milliseconds()
	secs := int((remaining + 999) / 1000)
	if secs < 1 {
		return 1
	}
	return secs
}

// expired reports whether the window starting at start has fully elapsed at now.
func expired(start time.Time, window time.Duration, now time.Time) bool {
	return now.After(start.Add(window))
}
