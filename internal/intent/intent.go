// Package intent turns a free-text question about cultural events into a
// structured Query. Parsing never fails: fragments that cannot be interpreted
// stay in the residual text used for semantic search.
package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/textnorm"
)

// Query is the parsed intent of one request. It is built once and not mutated.
type Query struct {
	Text     string     `json:"text"`
	Residual string     `json:"residual"`
	Dates    *DateRange `json:"dateRange,omitempty"`
	District string     `json:"district,omitempty"`
	Category string     `json:"category,omitempty"`
	FreeOnly bool       `json:"freeOnly"`
	MaxPrice *float64   `json:"maxPrice,omitempty"`

	// ForceWebSearch requests enrichment when local results are inadequate.
	ForceWebSearch bool `json:"forceWebSearch"`
}

// HasDateRange reports whether the query is answered by the date branch.
func (q Query) HasDateRange() bool {
	return q.Dates != nil
}

// SearchText returns the text used for lexical and semantic matching.
func (q Query) SearchText() string {
	if q.Residual != "" {
		return q.Residual
	}
	return textnorm.Normalize(q.Text)
}

// (menos de|hasta|maximo|max|no mas de) [s/.|soles] N
var priceCeilingRe = regexp.MustCompile(`\b(?:menos de|hasta|maximo|max|no mas de|no mayor a)\s*(?:s/\.?|soles)?\s*(\d+(?:[.,]\d+)?)`)

// Parse extracts the date, location, category and price facets from text.
// Facets are independent and each takes its first match. now fixes the
// calendar day that relative expressions resolve against.
func Parse(text string, now time.Time) Query {
	q := Query{Text: text}
	normalized := textnorm.Normalize(text)
	today := catalog.DateOf(now)

	var consumed []span

	if r, s := parseDate(normalized, today); r != nil {
		q.Dates = r
		consumed = append(consumed, *s)
	}

	q.District = matchDistrict(normalized)
	q.Category = matchCategory(normalized)

	for _, k := range freeKeywords {
		if i := textnorm.IndexPhrase(normalized, k); i >= 0 {
			q.FreeOnly = true
			consumed = append(consumed, span{i, i + len(k)})
			break
		}
	}

	if m := priceCeilingRe.FindStringSubmatchIndex(normalized); m != nil && !followedByMonth(normalized[m[1]:]) {
		if v, err := strconv.ParseFloat(strings.Replace(normalized[m[2]:m[3]], ",", ".", 1), 64); err == nil {
			q.MaxPrice = &v
			consumed = append(consumed, span{m[0], m[1]})
		}
	}
	if q.MaxPrice == nil {
		for _, k := range cheapKeywords {
			if i := textnorm.IndexPhrase(normalized, k); i >= 0 {
				v := CheapCeiling
				q.MaxPrice = &v
				consumed = append(consumed, span{i, i + len(k)})
				break
			}
		}
	}

	q.Residual = residual(normalized, consumed)
	return q
}

// matchDistrict returns the district whose variant appears earliest in text,
// preferring the longer variant at the same position.
func matchDistrict(text string) string {
	best, bestPos, bestLen := "", -1, 0
	for _, d := range districts {
		for _, v := range d.Variants {
			i := textnorm.IndexPhrase(text, v)
			if i < 0 {
				continue
			}
			if bestPos < 0 || i < bestPos || (i == bestPos && len(v) > bestLen) {
				best, bestPos, bestLen = d.Name, i, len(v)
			}
		}
	}
	return best
}

func matchCategory(text string) string {
	for _, c := range categories {
		for _, k := range c.Keywords {
			if textnorm.ContainsPhrase(text, k) {
				return c.Key
			}
		}
	}
	return ""
}

// followedByMonth reports whether rest starts with "de <month>", as in "hasta 15 de marzo".
func followedByMonth(rest string) bool {
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "de ") {
		return false
	}
	rest = strings.TrimPrefix(rest, "de ")
	for _, m := range monthNames {
		if strings.HasPrefix(rest, m) {
			return true
		}
	}
	return false
}

// residual removes the consumed spans and stopwords from the normalized text.
func residual(text string, consumed []span) string {
	sort.Slice(consumed, func(i, j int) bool { return consumed[i].start < consumed[j].start })
	var b strings.Builder
	pos := 0
	for _, s := range consumed {
		if s.start < pos {
			s.start = pos
		}
		if s.end <= s.start {
			continue
		}
		b.WriteString(text[pos:s.start])
		b.WriteByte(' ')
		pos = s.end
	}
	if pos < len(text) {
		b.WriteString(text[pos:])
	}
	return strings.Join(textnorm.Tokens(b.String()), " ")
}
