package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/tracing"
)

// DefaultNominatimURL is the public Nominatim endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim geocodes free-text addresses through the OpenStreetMap Nominatim API.
type Nominatim struct {
	baseURL     string
	userAgent   string
	countryCode string
	client      *http.Client
}

// NewNominatim creates a Nominatim geocoder. The usage policy requires an
// identifying User-Agent.
func NewNominatim(baseURL, userAgent string, client *http.Client) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Nominatim{baseURL: baseURL, userAgent: userAgent, countryCode: "pe", client: client}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the best match for query, or nil when nothing matches.
func (n *Nominatim) Geocode(ctx context.Context, query string) (match *Match, err error) {
	ctx, endSpan := tracing.StartProviderSpan(ctx, "nominatim", "search")
	defer func() { endSpan(err) }()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	if n.countryCode != "" {
		params.Set("countrycodes", n.countryCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocode request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lng, errLng := strconv.ParseFloat(places[0].Lon, 64)
	if errLat != nil || errLng != nil {
		return nil, fmt.Errorf("invalid coordinates %q, %q", places[0].Lat, places[0].Lon)
	}
	return &Match{Point: catalog.Point{Lat: lat, Lng: lng}, DisplayName: places[0].DisplayName}, nil
}
