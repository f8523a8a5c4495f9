package geocode

import (
	"context"
	"sync"
	"time"
)

// MinInterval is the minimum spacing between geocoding requests required by
// the provider's usage policy.
const MinInterval = time.Second

// Limiter spaces out calls to the geocoding provider. Every caller of one
// provider must share the same Limiter.
type Limiter interface {
	// Wait blocks until the caller may issue one request.
	Wait(ctx context.Context) error
}

// IntervalLimiter grants one request per interval within a process.
type IntervalLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewIntervalLimiter creates a limiter granting one request per interval.
// Intervals below MinInterval are raised to it.
func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	if interval < MinInterval {
		interval = MinInterval
	}
	return &IntervalLimiter{interval: interval, now: time.Now, sleep: sleepContext}
}

// Wait reserves the next free slot and sleeps until it starts.
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	return l.sleep(ctx, slot.Sub(now))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
