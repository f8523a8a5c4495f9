package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Backfiller completes catalog rows missing derived data. Each method
// returns the number of events updated.
type Backfiller interface {
	BackfillEmbeddings(ctx context.Context, limit int) int
	BackfillLocations(ctx context.Context, limit int) int
}

// Runner executes the backfill jobs, one at a time.
type Runner struct {
	backfiller Backfiller
	limit      int
	metrics    *Metrics
	logger     *slog.Logger

	mu sync.Mutex
}

// NewRunner creates a Runner processing at most limit events per job.
func NewRunner(b Backfiller, limit int, metrics *Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{backfiller: b, limit: limit, metrics: metrics, logger: logger}
}

// RunOnce runs the embedding backfill and then the location backfill. A
// cancelled context stops before the next job starts.
func (r *Runner) RunOnce(ctx context.Context) error {
	if !r.mu.TryLock() {
		r.logger.WarnContext(ctx, "previous backfill still running, skipping")
		return nil
	}
	defer r.mu.Unlock()

	jobs := []struct {
		jobType string
		run     func(context.Context, int) int
	}{
		{JobTypeEmbeddingBackfill, r.backfiller.BackfillEmbeddings},
		{JobTypeLocationBackfill, r.backfiller.BackfillLocations},
	}
	for _, job := range jobs {
		n, err := r.metrics.Track(job.jobType, func() (int, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return job.run(ctx, r.limit), nil
		}, errorType)
		if err != nil {
			return fmt.Errorf("%s: %w", job.jobType, err)
		}
		r.logger.InfoContext(ctx, "backfill complete",
			slog.String("job_type", job.jobType),
			slog.Int("updated", n))
	}
	return nil
}

// Schedule runs the jobs on a cron schedule until ctx is done. spec accepts
// the standard five-field format and descriptors such as "@every 1h".
func (r *Runner) Schedule(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "scheduled backfill failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("invalid backfill schedule %q: %w", spec, err)
	}

	c.Start()
	r.logger.InfoContext(ctx, "backfill scheduler started", slog.String("schedule", spec))
	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("backfill scheduler stopped")
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unknown"
	}
}
