// Package enrichment fills gaps in the event catalog from the live web.
//
// A run searches the web for the residual query text, extracts candidate events
// from every URL not processed before, stores the candidates that are not
// near-duplicates of catalog events and finally backfills missing embeddings.
// Every step degrades to fewer results on failure; a run never returns an error.
package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/embedding"
	"github.com/onnwee/agenda/internal/extraction"
	"github.com/onnwee/agenda/internal/intent"
	"github.com/onnwee/agenda/internal/tracing"
	"github.com/onnwee/agenda/internal/websearch"
)

// Defaults.
const (
	DefaultQualifier       = "eventos Lima Perú"
	DefaultSourceName      = "web"
	DefaultCity            = "Lima"
	DefaultMaxResults      = 5
	DefaultMinContentChars = 500
	DefaultMaxContextChars = 8000
	DefaultTitlePrefix     = 30
	DefaultEmbedDelay      = 500 * time.Millisecond
)

// Stats summarizes one enrichment run.
type Stats struct {
	NewEventsFound int `json:"newEventsFound"`
	URLsProcessed  int `json:"urlsProcessed"`
}

// PageFetcher downloads a page as text.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Locator resolves an address to coordinates.
type Locator interface {
	Resolve(ctx context.Context, address, district, city string) *catalog.Point
}

// Config holds the tunables of a Pipeline. Zero values take the defaults.
type Config struct {
	Qualifier       string
	SourceName      string
	City            string
	MaxResults      int
	FallbackResults int
	MinContentChars int
	MaxContextChars int
	TitlePrefix     int
	EmbedDelay      time.Duration
}

func (c Config) withDefaults() Config {
	if c.Qualifier == "" {
		c.Qualifier = DefaultQualifier
	}
	if c.SourceName == "" {
		c.SourceName = DefaultSourceName
	}
	if c.City == "" {
		c.City = DefaultCity
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.FallbackResults <= 0 {
		c.FallbackResults = websearch.DefaultFallbackResults
	}
	if c.MinContentChars <= 0 {
		c.MinContentChars = DefaultMinContentChars
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = DefaultMaxContextChars
	}
	if c.TitlePrefix <= 0 {
		c.TitlePrefix = DefaultTitlePrefix
	}
	if c.EmbedDelay <= 0 {
		c.EmbedDelay = DefaultEmbedDelay
	}
	return c
}

// Pipeline runs enrichment against the catalog. Optional collaborators may be
// nil, which disables the step that needs them.
type Pipeline struct {
	events    catalog.EventStore
	urls      catalog.URLStore
	search    websearch.Provider
	fetcher   PageFetcher
	extractor extraction.Extractor
	embedder  embedding.Embedder
	locator   Locator
	archiver  Archiver

	cfg     Config
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// Dependencies are the collaborators of a Pipeline.
type Dependencies struct {
	Events    catalog.EventStore
	URLs      catalog.URLStore
	Search    websearch.Provider
	Fetcher   PageFetcher
	Extractor extraction.Extractor
	Embedder  embedding.Embedder
	Locator   Locator
	Archiver  Archiver
	Metrics   *Metrics
	Logger    *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(deps Dependencies, cfg Config) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		events:    deps.Events,
		urls:      deps.URLs,
		search:    deps.Search,
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		embedder:  deps.Embedder,
		locator:   deps.Locator,
		archiver:  deps.Archiver,
		cfg:       cfg.withDefaults(),
		metrics:   deps.Metrics,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Enrich searches the web for q and stores newly found events. URLs processed
// by an earlier run are never extracted again.
func (p *Pipeline) Enrich(ctx context.Context, q intent.Query) Stats {
	ctx, endSpan := tracing.StartSpan(ctx, "enrichment.enrich")
	defer endSpan(nil)

	start := p.now()
	var stats Stats

	if p.search == nil || p.extractor == nil {
		p.logger.WarnContext(ctx, "enrichment skipped",
			slog.Bool("search_configured", p.search != nil),
			slog.Bool("extraction_configured", p.extractor != nil))
		p.metrics.observeRun(OutcomeNotConfigured, 0)
		return stats
	}

	query := strings.TrimSpace(q.SearchText() + " " + p.cfg.Qualifier)
	results, err := p.search.Search(ctx, query, p.cfg.MaxResults)
	if err != nil {
		outcome := OutcomeSearchFailed
		if errors.Is(err, websearch.ErrNotConfigured) {
			outcome = OutcomeNotConfigured
		}
		p.logger.WarnContext(ctx, "web search failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		p.metrics.observeRun(outcome, p.now().Sub(start).Seconds())
		return stats
	}

	var inserted []*catalog.Event
	for _, r := range websearch.FilterEventLike(results, p.cfg.FallbackResults) {
		events, attempted := p.processURL(ctx, query, r)
		if attempted {
			stats.URLsProcessed++
		}
		inserted = append(inserted, events...)
	}
	stats.NewEventsFound = len(inserted)

	// Older events missing an embedding are left to cmd/backfill so the
	// request is not held for the whole backlog.
	p.embedEvents(ctx, inserted)

	tracing.SetAttributes(ctx,
		attribute.Int("enrichment.urls_processed", stats.URLsProcessed),
		attribute.Int("enrichment.new_events", stats.NewEventsFound))
	p.metrics.observeRun(OutcomeCompleted, p.now().Sub(start).Seconds())
	p.logger.InfoContext(ctx, "enrichment complete",
		slog.String("query", query),
		slog.Int("urls_processed", stats.URLsProcessed),
		slog.Int("new_events", stats.NewEventsFound))
	return stats
}

// processURL extracts and stores the events of one search result. It returns
// the inserted events and whether extraction was attempted.
func (p *Pipeline) processURL(ctx context.Context, query string, r websearch.Result) ([]*catalog.Event, bool) {
	logger := p.logger.With(slog.String("url", r.URL))

	processed, err := p.urls.IsProcessed(ctx, r.URL)
	if err != nil {
		logger.WarnContext(ctx, "failed to check url", slog.String("error", err.Error()))
		p.metrics.incURL(URLSkipped)
		return nil, false
	}
	if processed {
		logger.DebugContext(ctx, "url already processed")
		p.metrics.incURL(URLSkipped)
		return nil, false
	}

	if err := p.urls.Discover(ctx, &catalog.DiscoveredURL{
		URL:         r.URL,
		SearchQuery: query,
		Title:       r.Title,
	}); err != nil {
		logger.WarnContext(ctx, "failed to record url", slog.String("error", err.Error()))
	}

	text := p.buildContext(ctx, r)
	p.archive(ctx, r.URL, text)

	candidates, err := p.extractor.Extract(ctx, text)
	if err != nil {
		// The URL stays unprocessed so a later run can retry it.
		logger.WarnContext(ctx, "extraction failed", slog.String("error", err.Error()))
		p.metrics.incURL(URLExtractionFailed)
		return nil, true
	}

	var inserted []*catalog.Event
	for _, c := range candidates {
		if e := p.store(ctx, r.URL, c); e != nil {
			inserted = append(inserted, e)
		}
	}

	if err := p.urls.MarkProcessed(ctx, r.URL, p.now()); err != nil {
		logger.WarnContext(ctx, "failed to mark url processed", slog.String("error", err.Error()))
	}
	p.metrics.incURL(URLProcessed)
	return inserted, true
}

// buildContext joins the known text of a result, fetching the page when the
// search content is short. The result is bounded by MaxContextChars.
func (p *Pipeline) buildContext(ctx context.Context, r websearch.Result) string {
	content := strings.TrimSpace(r.Content)
	if p.fetcher != nil && runeLen(content) < p.cfg.MinContentChars {
		page, err := p.fetcher.Fetch(ctx, r.URL)
		if err != nil {
			p.logger.WarnContext(ctx, "page fetch failed",
				slog.String("url", r.URL),
				slog.String("error", err.Error()))
		} else if page = strings.TrimSpace(page); runeLen(page) > runeLen(content) {
			content = page
		}
	}

	var b strings.Builder
	if r.Title != "" {
		b.WriteString("Título: ")
		b.WriteString(r.Title)
		b.WriteString("\n")
	}
	b.WriteString("URL: ")
	b.WriteString(r.URL)
	b.WriteString("\n\n")
	b.WriteString(content)
	return truncateRunes(b.String(), p.cfg.MaxContextChars)
}

func (p *Pipeline) archive(ctx context.Context, url, text string) {
	if p.archiver == nil {
		return
	}
	if err := p.archiver.Put(ctx, ArchiveKey(url), text); err != nil {
		p.logger.WarnContext(ctx, "failed to archive context",
			slog.String("url", url),
			slog.String("error", err.Error()))
	}
}

// store inserts a candidate unless it has no title or a catalog event already
// contains its title prefix. Returns the inserted event or nil.
func (p *Pipeline) store(ctx context.Context, sourceURL string, c extraction.Candidate) *catalog.Event {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		p.metrics.incCandidate(CandidateInvalid)
		return nil
	}
	logger := p.logger.With(slog.String("url", sourceURL), slog.String("title", title))

	existing, err := p.events.FindByTitleFragment(ctx, truncateRunes(title, p.cfg.TitlePrefix))
	if err != nil {
		logger.WarnContext(ctx, "duplicate check failed", slog.String("error", err.Error()))
		p.metrics.incCandidate(CandidateFailed)
		return nil
	}
	if existing != nil {
		logger.DebugContext(ctx, "skipping duplicate event", slog.String("event_id", existing.ID))
		tracing.AddEvent(ctx, "duplicate_skipped", attribute.String("event_id", existing.ID))
		p.metrics.incCandidate(CandidateDuplicate)
		return nil
	}

	e := &catalog.Event{
		Title:       title,
		Description: strings.TrimSpace(c.Description),
		Category:    strings.TrimSpace(c.Category),
		District:    strings.TrimSpace(c.District),
		Venue:       strings.TrimSpace(c.Venue),
		Address:     strings.TrimSpace(c.Address),
		EventDate:   catalog.ParseDate(c.Date),
		EventTime:   strings.TrimSpace(c.Time),
		SourceName:  p.cfg.SourceName,
		SourceURL:   sourceURL,
		IsActive:    true,
	}
	e.ApplyPrice(catalog.NormalizePrice(c.Price))
	if p.locator != nil {
		e.Location = p.locator.Resolve(ctx, e.Address, e.District, p.cfg.City)
	}

	if err := p.events.Insert(ctx, e); err != nil {
		outcome := CandidateFailed
		if errors.Is(err, catalog.ErrMissingTitle) || errors.Is(err, catalog.ErrInvalidCoordinates) {
			outcome = CandidateInvalid
		}
		logger.WarnContext(ctx, "failed to insert event", slog.String("error", err.Error()))
		p.metrics.incCandidate(outcome)
		return nil
	}
	p.metrics.incCandidate(CandidateInserted)
	return e
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
