package enrichment

import (
	"context"
	"log/slog"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/jobs"
	"github.com/onnwee/agenda/internal/tracing"
)

// BackfillEmbeddings generates embeddings for up to limit events lacking one,
// one request per EmbedDelay. Failures are logged and the event is left for a
// later pass. Returns the number of embeddings stored.
func (p *Pipeline) BackfillEmbeddings(ctx context.Context, limit int) int {
	if p.embedder == nil {
		return 0
	}
	ctx, endSpan := tracing.StartSpan(ctx, "enrichment.backfill_embeddings")
	defer endSpan(nil)

	events, err := p.events.ListMissingEmbedding(ctx, limit)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to list events missing embeddings",
			slog.String("error", err.Error()))
		return 0
	}
	return p.embedEvents(ctx, events)
}

// embedEvents embeds and stores each event once, spaced by EmbedDelay. A
// failing event is skipped without retry.
func (p *Pipeline) embedEvents(ctx context.Context, events []*catalog.Event) int {
	if p.embedder == nil {
		return 0
	}
	stored := 0
	for i, e := range events {
		if i > 0 {
			if err := p.sleep(ctx, p.cfg.EmbedDelay); err != nil {
				break
			}
		}
		vec, err := p.embedder.Embed(ctx, e.EmbeddingText())
		if err != nil {
			p.logger.WarnContext(ctx, "failed to embed event",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()))
			p.metrics.incEmbedding(jobs.StatusFailure)
			continue
		}
		if err := p.events.SetEmbedding(ctx, e.ID, vec); err != nil {
			p.logger.WarnContext(ctx, "failed to store embedding",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()))
			p.metrics.incEmbedding(jobs.StatusFailure)
			continue
		}
		p.metrics.incEmbedding(jobs.StatusSuccess)
		stored++
	}
	return stored
}

// BackfillLocations geocodes up to limit active events that have an address or
// district but no coordinates. The venue stands in for a missing address.
// Returns the number of locations stored.
func (p *Pipeline) BackfillLocations(ctx context.Context, limit int) int {
	if p.locator == nil {
		return 0
	}
	ctx, endSpan := tracing.StartSpan(ctx, "enrichment.backfill_locations")
	defer endSpan(nil)

	events, err := p.events.ListMissingLocation(ctx, limit)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to list events missing location",
			slog.String("error", err.Error()))
		return 0
	}

	stored := 0
	for _, e := range events {
		if ctx.Err() != nil {
			break
		}
		address := e.Address
		if address == "" {
			address = e.Venue
		}
		point := p.locator.Resolve(ctx, address, e.District, p.cfg.City)
		if point == nil {
			p.metrics.incLocation(jobs.StatusFailure)
			continue
		}
		if err := p.events.SetLocation(ctx, e.ID, *point); err != nil {
			p.logger.WarnContext(ctx, "failed to store location",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()))
			p.metrics.incLocation(jobs.StatusFailure)
			continue
		}
		p.metrics.incLocation(jobs.StatusSuccess)
		stored++
	}
	return stored
}
