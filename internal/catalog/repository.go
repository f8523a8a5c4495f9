package catalog

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/agenda/internal/textnorm"
)

// SearchHit is an event returned by hybrid search with its raw signal scores.
type SearchHit struct {
	Event       *Event
	TextScore   float64 // lexical match in [0, 1]
	VectorScore float64 // cosine similarity in [-1, 1], 0 when absent
}

// HybridQuery holds the inputs of a hybrid search.
type HybridQuery struct {
	Text      string
	Embedding []float32 // optional
	From      *time.Time
	Limit     int // per signal
}

// EventStore defines the catalog read/write path.
// Inserts are idempotent only through caller-side dedup checks.
type EventStore interface {
	// ListByDateRange returns active events with event_date in [start, end], ascending by date.
	ListByDateRange(ctx context.Context, start, end time.Time, limit int) ([]*Event, error)

	// HybridSearch returns the union of the top lexical matches and the top vector matches.
	HybridSearch(ctx context.Context, q HybridQuery) ([]SearchHit, error)

	// FindByTitleFragment returns an event whose title contains fragment (case-insensitive), or nil.
	FindByTitleFragment(ctx context.Context, fragment string) (*Event, error)

	// Insert stores a new event. An empty ID is assigned.
	Insert(ctx context.Context, e *Event) error

	// ListMissingEmbedding returns events whose embedding has not been generated.
	ListMissingEmbedding(ctx context.Context, limit int) ([]*Event, error)

	// SetEmbedding stores the embedding of an event.
	SetEmbedding(ctx context.Context, id string, embedding []float32) error

	// ListMissingLocation returns active events with an address or district but no coordinates.
	ListMissingLocation(ctx context.Context, limit int) ([]*Event, error)

	// SetLocation stores the coordinates of an event.
	SetLocation(ctx context.Context, id string, p Point) error
}

// URLStore tracks external URLs consulted during enrichment.
type URLStore interface {
	// Discover records a newly surfaced URL. Re-discovery of a known URL is a no-op.
	Discover(ctx context.Context, u *DiscoveredURL) error

	// IsProcessed reports whether extraction already completed for the URL.
	IsProcessed(ctx context.Context, url string) (bool, error)

	// MarkProcessed flags the URL as processed.
	MarkProcessed(ctx context.Context, url string, at time.Time) error
}

// prepareInsert validates an event and fills identity and audit fields.
func prepareInsert(e *Event, now time.Time) error {
	e.Title = strings.TrimSpace(e.Title)
	e.EnforcePriceInvariant()
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	return nil
}

// InMemoryEventStore is an in-memory implementation of EventStore.
// Used for testing and development.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[string]*Event
	now    func() time.Time
}

// NewInMemoryEventStore creates a new in-memory event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events: make(map[string]*Event),
		now:    time.Now,
	}
}

// Insert stores a copy of the event.
func (s *InMemoryEventStore) Insert(_ context.Context, e *Event) error {
	if err := prepareInsert(e, s.now()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e.Clone()
	return nil
}

// Count returns the number of stored events.
func (s *InMemoryEventStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Get returns a copy of the event with the given ID, or nil.
func (s *InMemoryEventStore) Get(id string) *Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.events[id]; ok {
		return e.Clone()
	}
	return nil
}

// ListByDateRange returns active events dated within [start, end], ascending by date then title.
func (s *InMemoryEventStore) ListByDateRange(_ context.Context, start, end time.Time, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end = DateOf(start), DateOf(end)
	var out []*Event
	for _, e := range s.events {
		if !e.IsActive || e.EventDate == nil {
			continue
		}
		d := DateOf(*e.EventDate)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EventDate.Equal(*out[j].EventDate) {
			return out[i].EventDate.Before(*out[j].EventDate)
		}
		return out[i].Title < out[j].Title
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HybridSearch scores active, non-past events by token overlap and cosine similarity.
func (s *InMemoryEventStore) HybridSearch(_ context.Context, q HybridQuery) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := textnorm.Tokens(q.Text)
	var textHits, vectorHits []SearchHit
	for _, e := range s.events {
		if !e.IsActive {
			continue
		}
		if q.From != nil && e.EventDate != nil && DateOf(*e.EventDate).Before(DateOf(*q.From)) {
			continue
		}
		if ts := tokenOverlap(tokens, e); ts > 0 {
			textHits = append(textHits, SearchHit{Event: e, TextScore: ts})
		}
		if len(q.Embedding) > 0 && len(e.Embedding) == len(q.Embedding) {
			vectorHits = append(vectorHits, SearchHit{Event: e, VectorScore: Cosine(q.Embedding, e.Embedding)})
		}
	}

	sort.Slice(textHits, func(i, j int) bool { return textHits[i].TextScore > textHits[j].TextScore })
	sort.Slice(vectorHits, func(i, j int) bool { return vectorHits[i].VectorScore > vectorHits[j].VectorScore })
	if q.Limit > 0 {
		if len(textHits) > q.Limit {
			textHits = textHits[:q.Limit]
		}
		if len(vectorHits) > q.Limit {
			vectorHits = vectorHits[:q.Limit]
		}
	}

	// Candidates from either signal are scored on both.
	seen := make(map[string]bool, len(textHits)+len(vectorHits))
	out := make([]SearchHit, 0, len(textHits)+len(vectorHits))
	for _, h := range append(textHits, vectorHits...) {
		if seen[h.Event.ID] {
			continue
		}
		seen[h.Event.ID] = true
		hit := SearchHit{Event: h.Event.Clone(), TextScore: tokenOverlap(tokens, h.Event)}
		if len(q.Embedding) > 0 {
			hit.VectorScore = Cosine(q.Embedding, h.Event.Embedding)
		}
		out = append(out, hit)
	}
	return out, nil
}

// FindByTitleFragment returns the first event whose title contains fragment.
func (s *InMemoryEventStore) FindByTitleFragment(_ context.Context, fragment string) (*Event, error) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if strings.Contains(strings.ToLower(e.Title), fragment) {
			return e.Clone(), nil
		}
	}
	return nil, nil
}

// ListMissingEmbedding returns events without an embedding, oldest first.
func (s *InMemoryEventStore) ListMissingEmbedding(_ context.Context, limit int) ([]*Event, error) {
	return s.list(limit, func(e *Event) bool { return e.Embedding == nil }), nil
}

// ListMissingLocation returns active events with address data but no coordinates.
func (s *InMemoryEventStore) ListMissingLocation(_ context.Context, limit int) ([]*Event, error) {
	return s.list(limit, func(e *Event) bool {
		return e.IsActive && e.Location == nil && (e.Address != "" || e.District != "")
	}), nil
}

func (s *InMemoryEventStore) list(limit int, keep func(*Event) bool) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Event
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SetEmbedding stores a copy of the embedding.
func (s *InMemoryEventStore) SetEmbedding(_ context.Context, id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	e.Embedding = append([]float32(nil), embedding...)
	e.UpdatedAt = s.now()
	return nil
}

// SetLocation stores validated coordinates.
func (s *InMemoryEventStore) SetLocation(_ context.Context, id string, p Point) error {
	if !p.Valid() {
		return ErrInvalidCoordinates
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	e.Location = &p
	e.UpdatedAt = s.now()
	return nil
}

// tokenOverlap returns the fraction of query tokens present in the event's searchable fields.
func tokenOverlap(tokens []string, e *Event) float64 {
	if len(tokens) == 0 {
		return 0
	}
	haystack := " " + textnorm.Normalize(strings.Join([]string{e.Title, e.Description, e.Category, e.Venue, e.District}, " ")) + " "
	matched := 0
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// Cosine returns the cosine similarity of two equal-length vectors, 0 if either is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// InMemoryURLStore is an in-memory implementation of URLStore.
type InMemoryURLStore struct {
	mu   sync.RWMutex
	urls map[string]*DiscoveredURL
	now  func() time.Time
}

// NewInMemoryURLStore creates a new in-memory URL store.
func NewInMemoryURLStore() *InMemoryURLStore {
	return &InMemoryURLStore{
		urls: make(map[string]*DiscoveredURL),
		now:  time.Now,
	}
}

// Discover records the URL unless it is already known.
func (s *InMemoryURLStore) Discover(_ context.Context, u *DiscoveredURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[u.URL]; ok {
		return nil
	}
	c := *u
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.urls[u.URL] = &c
	return nil
}

// IsProcessed reports whether the URL was marked processed.
func (s *InMemoryURLStore) IsProcessed(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.urls[url]
	return ok && u.Processed, nil
}

// MarkProcessed flags the URL as processed, recording it first if needed.
func (s *InMemoryURLStore) MarkProcessed(_ context.Context, url string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.urls[url]
	if !ok {
		u = &DiscoveredURL{URL: url, CreatedAt: at}
		s.urls[url] = u
	}
	u.Processed = true
	u.ProcessedAt = &at
	return nil
}

// Get returns a copy of the record for url, or nil.
func (s *InMemoryURLStore) Get(url string) *DiscoveredURL {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.urls[url]; ok {
		c := *u
		return &c
	}
	return nil
}
