// Package websearch discovers candidate event pages on the live web.
package websearch

import (
	"context"
	"errors"
	"strings"

	"github.com/onnwee/agenda/internal/textnorm"
)

// ErrNotConfigured is returned when the search provider has no credentials.
var ErrNotConfigured = errors.New("web search provider not configured")

// Result is one ranked search hit.
type Result struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Provider runs a web search.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// DefaultFallbackResults is how many raw results are kept when none look event-related.
const DefaultFallbackResults = 3

// eventPathMarkers appear in URL paths of event listings and ticketing pages.
var eventPathMarkers = []string{
	"evento", "event", "agenda", "cartelera", "programacion", "concierto", "teatro",
	"entradas", "tickets", "ticket", "festival", "exposicion", "muestra", "funcion",
	"joinnus", "teleticket", "ticketmaster", "passline",
}

// eventTitleMarkers appear in titles of event-related pages.
var eventTitleMarkers = []string{
	"evento", "eventos", "agenda", "cartelera", "concierto", "conciertos", "teatro", "obra",
	"festival", "exposicion", "entradas", "show", "presentacion", "feria", "taller",
	"que hacer", "planes", "fin de semana",
}

// LooksLikeEvent reports whether the URL path or title suggests an event page.
func LooksLikeEvent(r Result) bool {
	lowerURL := strings.ToLower(r.URL)
	for _, m := range eventPathMarkers {
		if strings.Contains(lowerURL, m) {
			return true
		}
	}
	title := textnorm.Normalize(r.Title)
	for _, m := range eventTitleMarkers {
		if textnorm.ContainsPhrase(title, m) {
			return true
		}
	}
	return false
}

// FilterEventLike keeps results that look event-related. When none do, the
// first fallback raw results are returned instead.
func FilterEventLike(results []Result, fallback int) []Result {
	var out []Result
	for _, r := range results {
		if r.URL != "" && LooksLikeEvent(r) {
			out = append(out, r)
		}
	}
	if len(out) > 0 {
		return out
	}
	if fallback > len(results) {
		fallback = len(results)
	}
	return results[:fallback]
}
