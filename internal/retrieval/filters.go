package retrieval

import (
	"strings"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/intent"
	"github.com/onnwee/agenda/internal/textnorm"
)

// Filter names used in metrics.
const (
	FilterCategory = "category"
	FilterLocation = "location"
	FilterPrice    = "price"
	FilterFree     = "free"
)

// MatchesCategory reports whether the event belongs to the category key, either
// through one of its catalog names or through one of its raw keywords.
// Unknown keys fall back to matching the key itself.
func MatchesCategory(e *catalog.Event, key string) bool {
	if e.Category == "" {
		return false
	}
	c, ok := intent.LookupCategory(key)
	if !ok {
		return textnorm.ContainsFold(e.Category, key)
	}
	for _, name := range c.CatalogNames {
		if textnorm.ContainsFold(e.Category, name) {
			return true
		}
	}
	for _, k := range c.Keywords {
		if textnorm.ContainsFold(e.Category, k) {
			return true
		}
	}
	return false
}

// MatchesLocation reports whether the district name, or one of its variants,
// appears in the event's district, address, venue, title or description.
func MatchesLocation(e *catalog.Event, district string) bool {
	names := []string{district}
	if d, ok := intent.LookupDistrict(district); ok {
		names = append(names, d.Variants...)
	}
	fields := textnorm.Normalize(strings.Join([]string{e.District, e.Address, e.Venue, e.Title, e.Description}, " "))
	for _, n := range names {
		if textnorm.ContainsPhrase(fields, textnorm.Normalize(n)) {
			return true
		}
	}
	return false
}

// WithinPrice reports whether the first price in the event's price text is at
// most max. Events without a parsable price are kept.
func WithinPrice(e *catalog.Event, max float64) bool {
	p, ok := catalog.FirstPrice(e.PriceText)
	if !ok {
		return true
	}
	return p <= max
}

// IsFree reports whether the price text uses free phrasing or the minimum price is zero.
// The IsFree flag alone is not consulted.
func IsFree(e *catalog.Event) bool {
	if catalog.IsFreeText(e.PriceText) {
		return true
	}
	return e.PriceMin != nil && *e.PriceMin == 0
}

// applyFilters narrows results by category, location and price, in that order.
func (r *Retriever) applyFilters(results []Result, q intent.Query) []Result {
	if q.Category != "" {
		results = r.keep(results, FilterCategory, func(e *catalog.Event) bool { return MatchesCategory(e, q.Category) })
	}
	if q.District != "" {
		results = r.keep(results, FilterLocation, func(e *catalog.Event) bool { return MatchesLocation(e, q.District) })
	}
	if q.FreeOnly {
		results = r.keep(results, FilterFree, IsFree)
	} else if q.MaxPrice != nil {
		max := *q.MaxPrice
		results = r.keep(results, FilterPrice, func(e *catalog.Event) bool { return WithinPrice(e, max) })
	}
	return results
}

func (r *Retriever) keep(results []Result, filter string, pred func(*catalog.Event) bool) []Result {
	out := results[:0]
	for _, res := range results {
		if pred(res.Event) {
			out = append(out, res)
		}
	}
	r.metrics.addFiltered(filter, len(results)-len(out))
	return out
}
