// Package chat resolves one conversational request end to end: parse the
// intent, retrieve, gate, optionally enrich and re-retrieve, then compose.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/compose"
	"github.com/onnwee/agenda/internal/embedding"
	"github.com/onnwee/agenda/internal/enrichment"
	"github.com/onnwee/agenda/internal/intent"
	"github.com/onnwee/agenda/internal/quality"
	"github.com/onnwee/agenda/internal/retrieval"
	"github.com/onnwee/agenda/internal/tracing"
)

// ErrEmptyMessage is returned when the request has no message text.
var ErrEmptyMessage = errors.New("message is required")

// DefaultDisplayCap bounds the events returned to the caller.
const DefaultDisplayCap = 20

// Request is an inbound chat message.
type Request struct {
	Message        string `json:"message"`
	ForceWebSearch bool   `json:"forceWebSearch"`
}

// Response is the structured reply.
type Response struct {
	Response    string         `json:"response"`
	Events      []EventSummary `json:"events"`
	EventsCount int            `json:"eventsCount"`
	Metadata    Metadata       `json:"metadata"`
}

// Metadata describes how the reply was produced.
type Metadata struct {
	UsedEnrichment  bool              `json:"usedEnrichment"`
	EnrichmentStats *enrichment.Stats `json:"enrichmentStats,omitempty"`
	Intent          intent.Query      `json:"intent"`
	Adequate        bool              `json:"adequate"`
}

// EventSummary is the wire form of an event.
type EventSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Venue       string   `json:"venue"`
	Address     string   `json:"address"`
	District    string   `json:"district"`
	Price       string   `json:"price"`
	Category    string   `json:"category"`
	SourceURL   string   `json:"source_url"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// Summarize converts an event to its wire form.
func Summarize(e *catalog.Event) EventSummary {
	s := EventSummary{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Time:        e.EventTime,
		Venue:       e.Venue,
		Address:     e.Address,
		District:    e.District,
		Price:       e.PriceText,
		Category:    e.Category,
		SourceURL:   e.SourceURL,
	}
	if e.EventDate != nil {
		s.Date = e.EventDate.Format(catalog.DateLayout)
	}
	if s.Price == "" && e.IsFree {
		s.Price = "Gratis"
	}
	if e.Location != nil {
		lat, lng := e.Location.Lat, e.Location.Lng
		s.Latitude, s.Longitude = &lat, &lng
	}
	return s
}

// Enricher runs a web enrichment pass.
type Enricher interface {
	Enrich(ctx context.Context, q intent.Query) enrichment.Stats
}

// Resolver orchestrates a request. Embedder and Enricher are optional.
type Resolver struct {
	retriever  *retrieval.Retriever
	embedder   embedding.Embedder
	enricher   Enricher
	gate       quality.Gate
	location   *time.Location
	displayCap int
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEmbedder sets the query embedder.
func WithEmbedder(e embedding.Embedder) Option {
	return func(r *Resolver) { r.embedder = e }
}

// WithEnricher sets the enrichment pipeline.
func WithEnricher(e Enricher) Option {
	return func(r *Resolver) { r.enricher = e }
}

// WithGate overrides the adequacy policy.
func WithGate(g quality.Gate) Option {
	return func(r *Resolver) { r.gate = g }
}

// WithLocation sets the zone whose calendar day relative dates resolve against.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithDisplayCap bounds the events returned.
func WithDisplayCap(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.displayCap = n
		}
	}
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver.
func NewResolver(retriever *retrieval.Retriever, opts ...Option) *Resolver {
	r := &Resolver{
		retriever:  retriever,
		gate:       quality.NewGate(),
		location:   LimaLocation(),
		displayCap: DefaultDisplayCap,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LimaLocation returns America/Lima, or a fixed UTC-5 zone when the tz database
// is unavailable.
func LimaLocation() *time.Location {
	loc, err := time.LoadLocation("America/Lima")
	if err != nil {
		return time.FixedZone("PET", -5*60*60)
	}
	return loc
}

// Resolve answers req. Only an empty message or a catalog failure is an error.
// Enrichment runs only when the gate finds the results inadequate and the
// caller asked for a web search.
func (r *Resolver) Resolve(ctx context.Context, req Request) (resp *Response, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "chat.resolve")
	defer func() { endSpan(err) }()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	q := intent.Parse(message, r.now().In(r.location))
	q.ForceWebSearch = req.ForceWebSearch

	vec := r.embed(ctx, q)
	results, err := r.retriever.Retrieve(ctx, q, vec)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	adequate := r.gate.IsAdequate(results)
	r.metrics.observeGate(adequate)

	meta := Metadata{Intent: q, Adequate: adequate}
	if !adequate && q.ForceWebSearch && r.enricher != nil {
		stats := r.enricher.Enrich(ctx, q)
		meta.UsedEnrichment = true
		meta.EnrichmentStats = &stats
		r.metrics.observeEnrichment(stats)

		if stats.NewEventsFound > 0 {
			if vec == nil {
				vec = r.embed(ctx, q)
			}
			again, err := r.retriever.Retrieve(ctx, q, vec)
			if err != nil {
				r.logger.WarnContext(ctx, "retrieval after enrichment failed",
					slog.String("error", err.Error()))
			} else {
				results = again
			}
		}
	}

	if len(results) > r.displayCap {
		results = results[:r.displayCap]
	}

	resp = &Response{
		Response:    compose.Compose(q, results, meta.UsedEnrichment),
		Events:      make([]EventSummary, 0, len(results)),
		EventsCount: len(results),
		Metadata:    meta,
	}
	for _, res := range results {
		resp.Events = append(resp.Events, Summarize(res.Event))
	}

	tracing.SetAttributes(ctx,
		attribute.Int("chat.events", resp.EventsCount),
		attribute.Bool("chat.adequate", adequate),
		attribute.Bool("chat.enriched", meta.UsedEnrichment))
	r.logger.InfoContext(ctx, "chat resolved",
		slog.Int("events", resp.EventsCount),
		slog.Bool("adequate", adequate),
		slog.Bool("used_enrichment", meta.UsedEnrichment),
		slog.Bool("date_branch", q.HasDateRange()))
	return resp, nil
}

// embed returns the query embedding for the hybrid branch, or nil when the
// query has a date range, no embedder is configured or the call fails.
func (r *Resolver) embed(ctx context.Context, q intent.Query) []float32 {
	if q.HasDateRange() || r.embedder == nil {
		return nil
	}
	text := q.SearchText()
	if text == "" {
		return nil
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, embedding.ErrNotConfigured) {
			level = slog.LevelDebug
		}
		r.logger.Log(ctx, level, "query embedding failed, using text search only",
			slog.String("error", err.Error()))
		return nil
	}
	return vec
}
