// Package geocode resolves event addresses to coordinates with a fallback
// chain and a shared rate limit on the external provider.
package geocode

import (
	"context"
	"log/slog"
	"strings"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/textnorm"
)

// LimaCenter is the fallback coordinate for addresses in Lima.
var LimaCenter = catalog.Point{Lat: -12.0464, Lng: -77.0428}

// Match is a geocoding result.
type Match struct {
	Point       catalog.Point
	DisplayName string
}

// Geocoder looks up free-text addresses.
type Geocoder interface {
	// Geocode returns nil without error when nothing matches.
	Geocode(ctx context.Context, query string) (*Match, error)
}

// Resolver applies the address, district and city-center fallback chain.
type Resolver struct {
	geocoder    Geocoder
	limiter     Limiter
	primaryCity string
	center      catalog.Point
	logger      *slog.Logger
}

// NewResolver creates a Resolver. limiter must be shared by every Resolver
// using the same geocoder.
func NewResolver(geocoder Geocoder, limiter Limiter, primaryCity string, logger *slog.Logger) *Resolver {
	if limiter == nil {
		limiter = NewIntervalLimiter(MinInterval)
	}
	if primaryCity == "" {
		primaryCity = "Lima"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		geocoder:    geocoder,
		limiter:     limiter,
		primaryCity: primaryCity,
		center:      LimaCenter,
		logger:      logger,
	}
}

// Resolve returns coordinates for the address, or nil. An empty address
// returns nil without any external request. Otherwise it tries
// address+district+city, then district+city, then the city center when city is
// the primary city.
func (r *Resolver) Resolve(ctx context.Context, address, district, city string) *catalog.Point {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}
	district = strings.TrimSpace(district)
	city = strings.TrimSpace(city)
	if city == "" {
		city = r.primaryCity
	}

	if p := r.lookup(ctx, join(address, district, city, "Perú")); p != nil {
		return p
	}
	if district != "" {
		if p := r.lookup(ctx, join(district, city, "Perú")); p != nil {
			return p
		}
	}
	if textnorm.Fold(city) == textnorm.Fold(r.primaryCity) {
		center := r.center
		return &center
	}
	return nil
}

func (r *Resolver) lookup(ctx context.Context, query string) *catalog.Point {
	if r.geocoder == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		r.logger.WarnContext(ctx, "geocode rate limiter failed",
			slog.String("error", err.Error()))
		return nil
	}
	m, err := r.geocoder.Geocode(ctx, query)
	if err != nil {
		r.logger.WarnContext(ctx, "geocode lookup failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return nil
	}
	if m == nil || !m.Point.Valid() {
		return nil
	}
	p := m.Point
	return &p
}

func join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
