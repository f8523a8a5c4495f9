package embedding

import (
	"context"
	"errors"
	"time"
)

// Retrying retries a failed Embed call with linear backoff.
// ErrNotConfigured and ErrDimensionMismatch are returned immediately.
type Retrying struct {
	next     Embedder
	attempts int
	backoff  time.Duration
	sleep    func(context.Context, time.Duration) error
}

// WithRetry wraps next so each Embed is tried up to attempts times.
func WithRetry(next Embedder, attempts int, backoff time.Duration) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{next: next, attempts: attempts, backoff: backoff, sleep: sleepContext}
}

// Embed calls the wrapped embedder until it succeeds or attempts run out.
func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	var err error
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			if serr := r.sleep(ctx, time.Duration(i)*r.backoff); serr != nil {
				return nil, serr
			}
		}
		var vec []float32
		vec, err = r.next.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrDimensionMismatch) {
			return nil, err
		}
	}
	return nil, err
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
