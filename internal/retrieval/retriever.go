// Package retrieval resolves a parsed query against the event catalog.
//
// Queries with a date range are answered by a direct date-filtered fetch where
// every event scores 1.0. All other queries run hybrid retrieval, combining the
// lexical and vector signals of the store with ranking weights. Both branches
// then apply the category, location and price post-filters in that order.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/intent"
	"github.com/onnwee/agenda/internal/ranking"
	"github.com/onnwee/agenda/internal/tracing"
)

// DefaultCandidateCap bounds the candidates fetched per retrieval.
const DefaultCandidateCap = 100

// DateMatchScore is the score assigned to date branch results.
const DateMatchScore = 1.0

// Result is a ranked event with a score in [0, 1].
type Result struct {
	Event *catalog.Event `json:"event"`
	Score float64        `json:"score"`

	// DateMatch marks results of the date branch, whose score is not a similarity.
	DateMatch bool `json:"dateMatch"`
}

// Retriever executes date and hybrid retrieval against an EventStore.
type Retriever struct {
	store   catalog.EventStore
	weights *ranking.Weights
	cap     int
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithWeights sets the ranking weights.
func WithWeights(w *ranking.Weights) Option {
	return func(r *Retriever) {
		if w != nil {
			r.weights = w
		}
	}
}

// WithCandidateCap sets the maximum number of candidates returned.
func WithCandidateCap(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.cap = n
		}
	}
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the clock used to exclude past events.
func WithClock(now func() time.Time) Option {
	return func(r *Retriever) { r.now = now }
}

// NewRetriever creates a Retriever over store.
func NewRetriever(store catalog.EventStore, opts ...Option) *Retriever {
	r := &Retriever{
		store:   store,
		weights: ranking.DefaultWeights(),
		cap:     DefaultCandidateCap,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the results for q ordered by non-increasing score, never more
// than the candidate cap. embedding may be nil, in which case hybrid retrieval
// relies on the lexical signal alone.
func (r *Retriever) Retrieve(ctx context.Context, q intent.Query, embedding []float32) (results []Result, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "retrieval.retrieve")
	defer func() { endSpan(err) }()

	branch := BranchHybrid
	if q.HasDateRange() {
		branch = BranchDate
		results, err = r.byDate(ctx, *q.Dates)
	} else {
		results, err = r.hybrid(ctx, q, embedding)
	}
	if err != nil {
		return nil, err
	}

	candidates := len(results)
	results = r.applyFilters(results, q)

	tracing.SetAttributes(ctx,
		attribute.String("retrieval.branch", branch),
		attribute.Int("retrieval.candidates", candidates),
		attribute.Int("retrieval.results", len(results)))
	r.metrics.observe(branch, len(results))
	r.logger.DebugContext(ctx, "retrieval complete",
		slog.String("branch", branch),
		slog.Int("candidates", candidates),
		slog.Int("results", len(results)))

	return results, nil
}

func (r *Retriever) byDate(ctx context.Context, dates intent.DateRange) ([]Result, error) {
	events, err := r.store.ListByDateRange(ctx, dates.Start, dates.End, r.cap)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by date: %w", err)
	}
	if len(events) > r.cap {
		events = events[:r.cap]
	}
	results := make([]Result, 0, len(events))
	for _, e := range events {
		results = append(results, Result{Event: e, Score: DateMatchScore, DateMatch: true})
	}
	return results, nil
}

func (r *Retriever) hybrid(ctx context.Context, q intent.Query, embedding []float32) ([]Result, error) {
	today := catalog.DateOf(r.now())
	hits, err := r.store.HybridSearch(ctx, catalog.HybridQuery{
		Text:      q.SearchText(),
		Embedding: embedding,
		From:      &today,
		Limit:     r.cap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run hybrid search: %w", err)
	}

	hasVector := len(embedding) > 0
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Event: h.Event,
			Score: ranking.HybridScore(ranking.HybridParams{
				Text:      h.TextScore,
				Vector:    h.VectorScore,
				HasVector: hasVector,
			}, r.weights),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Event.Title < results[j].Event.Title
	})
	if len(results) > r.cap {
		results = results[:r.cap]
	}
	return results, nil
}

// Events returns the events of results in order.
func Events(results []Result) []*catalog.Event {
	out := make([]*catalog.Event, 0, len(results))
	for _, res := range results {
		out = append(out, res.Event)
	}
	return out
}
