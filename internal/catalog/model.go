// Package catalog provides the event catalog model and the stores that persist
// events and the external URLs consulted while enriching the catalog.
package catalog

import (
	"errors"
	"strings"
	"time"
)

// Validation errors.
var (
	// ErrMissingTitle is returned when an event has no title.
	ErrMissingTitle = errors.New("event title is required")

	// ErrInvalidCoordinates is returned when an event location is out of range.
	ErrInvalidCoordinates = errors.New("coordinates out of range")

	// ErrInvalidPrice is returned when a free event carries a non-zero price.
	ErrInvalidPrice = errors.New("free event must have zero price")

	// ErrEventNotFound is returned when updating an event that does not exist.
	ErrEventNotFound = errors.New("event not found")
)

// DateLayout is the ISO calendar date format used for event dates.
const DateLayout = "2006-01-02"

// Point represents a geographic coordinate with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within -90..90 latitude and -180..180 longitude.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Event represents a cultural happening in the catalog.
// Location is either nil or carries both latitude and longitude.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`

	District string `json:"district,omitempty"`
	Venue    string `json:"venue,omitempty"`
	Address  string `json:"address,omitempty"`
	Location *Point `json:"location,omitempty"`

	// EventDate is a calendar date at midnight UTC.
	EventDate *time.Time `json:"event_date,omitempty"`
	EventTime string     `json:"event_time,omitempty"`

	IsFree    bool     `json:"is_free"`
	PriceMin  *float64 `json:"price_min,omitempty"`
	PriceMax  *float64 `json:"price_max,omitempty"`
	PriceText string   `json:"price_text,omitempty"`

	SourceName string `json:"source_name,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`

	IsActive bool `json:"is_active"`

	// Embedding is nil until generated by the backfill.
	Embedding []float32 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnforcePriceInvariant zeroes the price range of free events.
// Returns the event for chaining.
func (e *Event) EnforcePriceInvariant() *Event {
	if e.IsFree {
		zero := 0.0
		e.PriceMin = &zero
		zeroMax := 0.0
		e.PriceMax = &zeroMax
	}
	return e
}

// ApplyPrice copies a normalized price onto the event.
func (e *Event) ApplyPrice(p Price) {
	e.IsFree = p.IsFree
	e.PriceMin = p.Min
	e.PriceMax = p.Max
	e.PriceText = p.Text
	e.EnforcePriceInvariant()
}

// Validate checks the title, coordinate and price invariants.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrMissingTitle
	}
	if e.Location != nil && !e.Location.Valid() {
		return ErrInvalidCoordinates
	}
	if e.IsFree {
		if e.PriceMin == nil || e.PriceMax == nil || *e.PriceMin != 0 || *e.PriceMax != 0 {
			return ErrInvalidPrice
		}
	}
	return nil
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	c := *e
	if e.Location != nil {
		p := *e.Location
		c.Location = &p
	}
	if e.EventDate != nil {
		d := *e.EventDate
		c.EventDate = &d
	}
	if e.PriceMin != nil {
		v := *e.PriceMin
		c.PriceMin = &v
	}
	if e.PriceMax != nil {
		v := *e.PriceMax
		c.PriceMax = &v
	}
	if e.Embedding != nil {
		c.Embedding = append([]float32(nil), e.Embedding...)
	}
	return &c
}

// EmbeddingText builds the text that represents the event for vector search.
func (e *Event) EmbeddingText() string {
	parts := make([]string, 0, 5)
	for _, s := range []string{e.Title, e.Category, e.Venue, e.District, e.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " | ")
}

// DiscoveredURL records an external page consulted during enrichment.
// A URL is extracted at most once; re-discovery of a processed URL is a no-op.
type DiscoveredURL struct {
	URL         string     `json:"url"`
	SearchQuery string     `json:"search_query"`
	Title       string     `json:"title,omitempty"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ParseDate parses an ISO calendar date. Returns nil for empty or malformed input.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// DateOf truncates t to its calendar date at midnight UTC, keeping t's local day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
