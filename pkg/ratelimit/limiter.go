// Package ratelimit implements the multi-dimensional admission-control
// subsystem described in spec §4.2: three per-user sliding windows, one
// per-user token bucket, a global sliding window, and a per-IP sliding
// window, evaluated in order with first-deny-wins semantics.
package ratelimit

import (
	"sync"
	"time"

	"github.com/canadianpizza/orderbot-core/pkg/config"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

// Limiter is the RateLimiter described in spec §4.2. Safe for concurrent
// use; admission for a given subject is serialized by that subject's own
// slidingWindow/tokenBucket mutex while different subjects proceed in
// parallel, matching §5's "no global lock on the request path".
type Limiter struct {
	cfg config.RateLimitConfig

	mu            sync.RWMutex // guards the five per-subject maps below
	perUserMinute map[string]*slidingWindow
	perUserHour   map[string]*slidingWindow
	perUserDay    map[string]*slidingWindow
	perUserBurst  map[string]*tokenBucket
	perIP         map[string]*slidingWindow

	global *slidingWindow
}

// New constructs a Limiter from the resolved configuration.
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		cfg:           cfg,
		perUserMinute: make(map[string]*slidingWindow),
		perUserHour:   make(map[string]*slidingWindow),
		perUserDay:    make(map[string]*slidingWindow),
		perUserBurst:  make(map[string]*tokenBucket),
		perIP:         make(map[string]*slidingWindow),
		global:        newSlidingWindow(cfg.GlobalPerMinute, time.Minute),
	}
}

// Check evaluates every dimension in spec §4.2's table order, returning
// the first deny encountered or an Admit decision if every dimension
// passes. Non-blocking and bounded in time (no external I/O), matching
// §4.2's "Cancellation: None".
func (l *Limiter) Check(subject, ip string) models.Decision {
	now := time.Now()

	type check struct {
		dim models.Dimension
		run func() (bool, int, time.Time)
	}

	checks := []check{
		{models.DimensionPerUserMinute, func() (bool, int, time.Time) {
			return l.windowFor(&l.perUserMinute, subject, l.cfg.PerUserPerMinute, time.Minute).admit(now)
		}},
		{models.DimensionPerUserHour, func() (bool, int, time.Time) {
			return l.windowFor(&l.perUserHour, subject, l.cfg.PerUserPerHour, time.Hour).admit(now)
		}},
		{models.DimensionPerUserDay, func() (bool, int, time.Time) {
			return l.windowFor(&l.perUserDay, subject, l.cfg.PerUserPerDay, 24*time.Hour).admit(now)
		}},
		{models.DimensionPerUserBurst, func() (bool, int, time.Time) {
			return l.bucketFor(subject, now).admit(now)
		}},
		{models.DimensionGlobal, func() (bool, int, time.Time) {
			return l.global.admit(now)
		}},
		{models.DimensionPerIP, func() (bool, int, time.Time) {
			return l.windowFor(&l.perIP, ip, l.cfg.PerIPPerMinute, time.Minute).admit(now)
		}},
	}

	var lastRemaining int
	var lastReset time.Time
	for _, c := range checks {
		admitted, remaining, resetAt := c.run()
		lastRemaining, lastReset = remaining, resetAt
		if !admitted {
			retryAfter := resetAt.Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
			return models.Decision{
				Admitted:   false,
				Remaining:  0,
				ResetAt:    resetAt,
				DenyReason: c.dim,
				RetryAfter: retryAfter,
			}
		}
	}

	return models.Decision{
		Admitted:  true,
		Remaining: lastRemaining,
		ResetAt:   lastReset,
	}
}

// windowFor returns the slidingWindow for subject in the given registry,
// creating it under the registry's write lock on first use. The registry
// lock only guards map membership; the window's own mutex (in
// slidingWindow.admit) guards its counters, so two different subjects
// never block each other past the brief map lookup.
func (l *Limiter) windowFor(registry *map[string]*slidingWindow, subject string, limit int, window time.Duration) *slidingWindow {
	l.mu.RLock()
	w, ok := (*registry)[subject]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := (*registry)[subject]; ok {
		return w
	}
	w = newSlidingWindow(limit, window)
	(*registry)[subject] = w
	return w
}

func (l *Limiter) bucketFor(subject string, now time.Time) *tokenBucket {
	l.mu.RLock()
	b, ok := l.perUserBurst[subject]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.perUserBurst[subject]; ok {
		return b
	}
	b = newTokenBucket(l.cfg.BurstCapacity, l.cfg.BurstRefillPerMin, now)
	l.perUserBurst[subject] = b
	return b
}
