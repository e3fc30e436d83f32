// Package ratelimit bounds how often a sender's messages may trigger
// backend invocations. Each sender gets a token bucket: tokens refill
// lazily from wall-clock time at a fixed rate up to a capacity, and one
// token is consumed per allowed message. Rejection is immediate: there
// is no queuing, the caller decides what to do with a rejected message.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config controls bucket sizing. Capacity is the burst size, PerSecond
// the refill rate. Global switches from per-sender buckets to a single
// shared bucket.
type Config struct {
	Capacity  int     `json:"capacity"`
	PerSecond float64 `json:"per_second"`
	Global    bool    `json:"global,omitempty"`
}

// Limiter tracks token buckets keyed by sender. A nil Limiter allows
// everything, so callers can hold one unconditionally.
type Limiter struct {
	cfg     Config
	global  *rate.Limiter
	senders sync.Map // sender id → *rate.Limiter
}

// New creates a Limiter from config. Returns nil when cfg is nil;
// rate limiting disabled.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		return nil
	}
	l := &Limiter{cfg: *cfg}
	if cfg.Global {
		l.global = rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.Capacity)
	}
	return l
}

// Allow consumes one token from the sender's bucket if available.
// Buckets start full; refill is computed from elapsed time on each call,
// never by a background timer, so idle periods replenish proportionally
// up to capacity.
func (l *Limiter) Allow(sender string) bool {
	if l == nil {
		return true
	}
	if l.global != nil {
		return l.global.Allow()
	}
	v, ok := l.senders.Load(sender)
	if !ok {
		v, _ = l.senders.LoadOrStore(sender, rate.NewLimiter(rate.Limit(l.cfg.PerSecond), l.cfg.Capacity))
	}
	return v.(*rate.Limiter).Allow()
}
