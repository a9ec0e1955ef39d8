// Package ratelimit provides request admission control over three rolling
// windows (minute/hour/day). The in-process Limiter keeps per-window
// timestamp logs behind a mutex; RedisLimiter shares one quota across
// processes using an atomic Lua script.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config holds the per-window ceilings for one platform client.
// A ceiling of 0 permanently denies admission on that window.
type Config struct {
	PerMinute  int
	PerHour    int
	PerDay     int
	RetryAfter time.Duration
	MaxRetries int
}

const (
	minuteWindow = 60 * time.Second
	hourWindow   = 3600 * time.Second
	dayWindow    = 86400 * time.Second
)

// Usage is the current occupancy of the three windows.
type Usage struct {
	Minute int
	Hour   int
	Day    int
}

// Limiter admits or denies request attempts against three independent
// rolling windows. All state is owned by one platform client and protected
// by the client's request path going through Allow/Wait.
type Limiter struct {
	cfg Config

	mu     sync.Mutex
	minute []time.Time
	hour   []time.Time
	day    []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter for the given config. A zero RetryAfter defaults
// to 60s (the vendor-default advisory delay).
func New(cfg Config) *Limiter {
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 60 * time.Second
	}
	return &Limiter{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Allow prunes expired timestamps from all three windows and, if every
// window is below its ceiling, records the current instant in all three and
// returns true. On denial no state changes. The prune-check-record sequence
// is a single critical section.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute = prune(l.minute, now.Add(-minuteWindow))
	l.hour = prune(l.hour, now.Add(-hourWindow))
	l.day = prune(l.day, now.Add(-dayWindow))

	if len(l.minute) >= l.cfg.PerMinute ||
		len(l.hour) >= l.cfg.PerHour ||
		len(l.day) >= l.cfg.PerDay {
		return false
	}

	l.minute = append(l.minute, now)
	l.hour = append(l.hour, now)
	l.day = append(l.day, now)
	return true
}

// Wait blocks until a request is admitted, sleeping the configured
// RetryAfter between attempts. There is no internal deadline; callers
// wanting one must bound ctx.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.Allow() {
			return nil
		}
		if err := l.sleep(ctx, l.cfg.RetryAfter); err != nil {
			return err
		}
	}
}

// Usage reports current window occupancy after pruning.
func (l *Limiter) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute = prune(l.minute, now.Add(-minuteWindow))
	l.hour = prune(l.hour, now.Add(-hourWindow))
	l.day = prune(l.day, now.Add(-dayWindow))

	return Usage{Minute: len(l.minute), Hour: len(l.hour), Day: len(l.day)}
}

// prune drops every timestamp at or before cutoff. Logs are append-only in
// time order, so a single scan for the first surviving entry suffices.
func prune(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return log
	}
	return append(log[:0], log[i:]...)
}
