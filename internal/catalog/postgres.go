package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/pgvector/pgvector-go"

	"github.com/onnwee/agenda/internal/textnorm"
	"github.com/onnwee/agenda/internal/tracing"
)

// eventColumns lists the columns read by scanEvent, in order.
const eventColumns = `e.id, e.title, e.description, e.category, e.district, e.venue, e.address,
	e.latitude, e.longitude, e.event_date, e.event_time, e.is_free, e.price_min, e.price_max,
	e.price_text, e.source_name, e.source_url, e.is_active, e.created_at, e.updated_at`

// searchDocument is the Spanish full-text document matched by hybrid search.
// It must stay identical to the expression of the events_search_idx index.
const searchDocument = `to_tsvector('spanish', coalesce(e.title, '') || ' ' || coalesce(e.description, '') || ' ' ||
	coalesce(e.category, '') || ' ' || coalesce(e.venue, '') || ' ' || coalesce(e.district, ''))`

// PostgresEventStore implements EventStore on PostgreSQL with the pgvector extension.
type PostgresEventStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresEventStore creates a new PostgresEventStore.
func NewPostgresEventStore(db *sql.DB, logger *slog.Logger) *PostgresEventStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresEventStore{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner, extra ...any) (*Event, error) {
	var (
		e                                               Event
		description, category, district, venue, address sql.NullString
		eventTime, priceText, sourceName, sourceURL     sql.NullString
		lat, lng, priceMin, priceMax                    sql.NullFloat64
		eventDate                                       sql.NullTime
	)
	dest := []any{
		&e.ID, &e.Title, &description, &category, &district, &venue, &address,
		&lat, &lng, &eventDate, &eventTime, &e.IsFree, &priceMin, &priceMax,
		&priceText, &sourceName, &sourceURL, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	e.Description = description.String
	e.Category = category.String
	e.District = district.String
	e.Venue = venue.String
	e.Address = address.String
	e.EventTime = eventTime.String
	e.PriceText = priceText.String
	e.SourceName = sourceName.String
	e.SourceURL = sourceURL.String
	if lat.Valid && lng.Valid {
		e.Location = &Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if eventDate.Valid {
		d := DateOf(eventDate.Time)
		e.EventDate = &d
	}
	if priceMin.Valid {
		v := priceMin.Float64
		e.PriceMin = &v
	}
	if priceMax.Valid {
		v := priceMax.Float64
		e.PriceMax = &v
	}
	return &e, nil
}

func (s *PostgresEventStore) queryEvents(ctx context.Context, query string, args ...any) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListByDateRange returns active events dated within [start, end], ascending by date.
func (s *PostgresEventStore) ListByDateRange(ctx context.Context, start, end time.Time, limit int) (events []*Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + eventColumns + ` FROM events e
		WHERE e.is_active AND e.event_date BETWEEN $1 AND $2
		ORDER BY e.event_date ASC, e.title ASC
		LIMIT $3`
	events, err = s.queryEvents(ctx, query, DateOf(start), DateOf(end), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list events by date: %w", err)
	}
	return events, nil
}

// HybridSearch unions the top full-text matches and the top cosine matches
// against the embedding column, then scores every candidate on both signals.
// Full-text candidates match any query term. The text score is the fraction
// of query terms found in the event, the same scale as the in-memory store.
func (s *PostgresEventStore) HybridSearch(ctx context.Context, q HybridQuery) (hits []SearchHit, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	tokens := textnorm.Tokens(q.Text)
	var embedding any
	if len(q.Embedding) > 0 {
		embedding = pgvector.NewVector(q.Embedding)
	}
	var from any
	if q.From != nil {
		from = DateOf(*q.From)
	}

	query := `WITH text_hits AS (
			SELECT e.id
			FROM events e
			WHERE e.is_active AND $1 <> ''
				AND ($3::date IS NULL OR e.event_date IS NULL OR e.event_date >= $3::date)
				AND ` + searchDocument + ` @@ to_tsquery('spanish', $1)
			ORDER BY ts_rank_cd(` + searchDocument + `, to_tsquery('spanish', $1)) DESC
			LIMIT $4
		), vector_hits AS (
			SELECT e.id
			FROM events e
			WHERE e.is_active AND $2::vector IS NOT NULL AND e.embedding IS NOT NULL
				AND ($3::date IS NULL OR e.event_date IS NULL OR e.event_date >= $3::date)
			ORDER BY e.embedding <=> $2::vector
			LIMIT $4
		)
		SELECT ` + eventColumns + `,
			CASE WHEN $2::vector IS NULL OR e.embedding IS NULL THEN 0 ELSE 1 - (e.embedding <=> $2::vector) END
		FROM events e
		WHERE e.id IN (SELECT id FROM text_hits UNION SELECT id FROM vector_hits)`

	rows, err := s.db.QueryContext(ctx, query, tsQueryTerms(tokens), embedding, from, limitOrAll(q.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to run hybrid search: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vectorScore float64
		e, err := scanEvent(rows, &vectorScore)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, SearchHit{Event: e, TextScore: tokenOverlap(tokens, e), VectorScore: vectorScore})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search hits: %w", err)
	}
	return hits, nil
}

// tsQueryTerms joins the alphanumeric parts of tokens into an OR tsquery.
func tsQueryTerms(tokens []string) string {
	var terms []string
	for _, t := range tokens {
		terms = append(terms, strings.FieldsFunc(t, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})...)
	}
	return strings.Join(terms, " | ")
}

// FindByTitleFragment returns an event whose title contains fragment, or nil.
func (s *PostgresEventStore) FindByTitleFragment(ctx context.Context, fragment string) (event *Event, err error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.title ILIKE $1 ESCAPE '\' LIMIT 1`
	event, err = scanEvent(s.db.QueryRowContext(ctx, query, "%"+escapeLike(fragment)+"%"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event by title: %w", err)
	}
	return event, nil
}

// Insert stores a new event.
func (s *PostgresEventStore) Insert(ctx context.Context, e *Event) (err error) {
	if err := prepareInsert(e, time.Now()); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	var lat, lng any
	if e.Location != nil {
		lat, lng = e.Location.Lat, e.Location.Lng
	}
	var eventDate any
	if e.EventDate != nil {
		eventDate = DateOf(*e.EventDate)
	}
	var embedding any
	if len(e.Embedding) > 0 {
		embedding = pgvector.NewVector(e.Embedding)
	}

	query := `INSERT INTO events (
			id, title, description, category, district, venue, address, latitude, longitude,
			event_date, event_time, is_free, price_min, price_max, price_text,
			source_name, source_url, is_active, embedding, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err = s.db.ExecContext(ctx, query,
		e.ID, e.Title, nullString(e.Description), nullString(e.Category), nullString(e.District),
		nullString(e.Venue), nullString(e.Address), lat, lng,
		eventDate, nullString(e.EventTime), e.IsFree, e.PriceMin, e.PriceMax, nullString(e.PriceText),
		nullString(e.SourceName), nullString(e.SourceURL), e.IsActive, embedding, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("failed to insert event",
			slog.String("error", err.Error()),
			slog.String("title", e.Title))
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// ListMissingEmbedding returns events whose embedding is NULL, oldest first.
func (s *PostgresEventStore) ListMissingEmbedding(ctx context.Context, limit int) (events []*Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.embedding IS NULL ORDER BY e.created_at ASC LIMIT $1`
	events, err = s.queryEvents(ctx, query, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list events missing embedding: %w", err)
	}
	return events, nil
}

// SetEmbedding stores the embedding of an event.
func (s *PostgresEventStore) SetEmbedding(ctx context.Context, id string, embedding []float32) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET embedding = $2, updated_at = now() WHERE id = $1`,
		id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}
	return requireRow(res)
}

// ListMissingLocation returns active events with address data but no coordinates.
func (s *PostgresEventStore) ListMissingLocation(ctx context.Context, limit int) (events []*Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + eventColumns + ` FROM events e
		WHERE e.is_active AND e.latitude IS NULL
			AND (coalesce(e.address, '') <> '' OR coalesce(e.district, '') <> '')
		ORDER BY e.created_at ASC LIMIT $1`
	events, err = s.queryEvents(ctx, query, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list events missing location: %w", err)
	}
	return events, nil
}

// SetLocation stores both coordinates of an event together.
func (s *PostgresEventStore) SetLocation(ctx context.Context, id string, p Point) (err error) {
	if !p.Valid() {
		return ErrInvalidCoordinates
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET latitude = $2, longitude = $3, updated_at = now() WHERE id = $1`,
		id, p.Lat, p.Lng)
	if err != nil {
		return fmt.Errorf("failed to set location: %w", err)
	}
	return requireRow(res)
}

// PostgresURLStore implements URLStore on the discovered_urls table.
type PostgresURLStore struct {
	db *sql.DB
}

// NewPostgresURLStore creates a new PostgresURLStore.
func NewPostgresURLStore(db *sql.DB) *PostgresURLStore {
	return &PostgresURLStore{db: db}
}

// Discover inserts the URL; a known URL is left untouched.
func (s *PostgresURLStore) Discover(ctx context.Context, u *DiscoveredURL) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "discovered_urls", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO discovered_urls (url, search_query, title) VALUES ($1, $2, $3)
		ON CONFLICT (url) DO NOTHING`,
		u.URL, nullString(u.SearchQuery), nullString(u.Title))
	if err != nil {
		return fmt.Errorf("failed to record discovered url: %w", err)
	}
	return nil
}

// IsProcessed reports whether the URL was marked processed.
func (s *PostgresURLStore) IsProcessed(ctx context.Context, url string) (processed bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "discovered_urls", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = s.db.QueryRowContext(ctx, `SELECT processed FROM discovered_urls WHERE url = $1`, url).Scan(&processed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check discovered url: %w", err)
	}
	return processed, nil
}

// MarkProcessed flags the URL as processed, inserting it if needed.
func (s *PostgresURLStore) MarkProcessed(ctx context.Context, url string, at time.Time) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "discovered_urls", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO discovered_urls (url, processed, processed_at) VALUES ($1, true, $2)
		ON CONFLICT (url) DO UPDATE SET processed = true, processed_at = EXCLUDED.processed_at`,
		url, at)
	if err != nil {
		return fmt.Errorf("failed to mark url processed: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// limitOrAll maps a non-positive limit to NULL, which LIMIT treats as no limit.
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
