package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/agenda/internal/catalog"
)

type fakeGeocoder struct {
	mu      sync.Mutex
	queries []string
	answers map[string]*Match
	err     error
}

func (f *fakeGeocoder) Geocode(_ context.Context, query string) (*Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.answers[query], nil
}

type noopLimiter struct{ calls int }

func (l *noopLimiter) Wait(context.Context) error {
	l.calls++
	return nil
}

func TestResolve_EmptyAddressMakesNoRequest(t *testing.T) {
	g := &fakeGeocoder{}
	lim := &noopLimiter{}
	r := NewResolver(g, lim, "Lima", nil)

	if p := r.Resolve(context.Background(), "  ", "Miraflores", "Lima"); p != nil {
		t.Errorf("Resolve() = %+v, want nil", p)
	}
	if len(g.queries) != 0 || lim.calls != 0 {
		t.Errorf("expected no requests, got %d queries and %d waits", len(g.queries), lim.calls)
	}
}

func TestResolve_FallbackChain(t *testing.T) {
	exact := &Match{Point: catalog.Point{Lat: -12.12, Lng: -77.03}}
	district := &Match{Point: catalog.Point{Lat: -12.11, Lng: -77.02}}

	tests := []struct {
		name        string
		answers     map[string]*Match
		city        string
		want        *catalog.Point
		wantQueries int
	}{
		{
			name:        "exact address",
			answers:     map[string]*Match{"Av. Larco 123, Miraflores, Lima, Perú": exact},
			want:        &exact.Point,
			wantQueries: 1,
		},
		{
			name:        "district fallback",
			answers:     map[string]*Match{"Miraflores, Lima, Perú": district},
			want:        &district.Point,
			wantQueries: 2,
		},
		{
			name:        "city center",
			want:        &LimaCenter,
			wantQueries: 2,
		},
		{
			name:        "other city",
			city:        "Cusco",
			wantQueries: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGeocoder{answers: tt.answers}
			r := NewResolver(g, &noopLimiter{}, "Lima", nil)

			got := r.Resolve(context.Background(), "Av. Larco 123", "Miraflores", tt.city)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Resolve() = %+v, want nil", got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
			if len(g.queries) != tt.wantQueries {
				t.Errorf("made %d queries %v, want %d", len(g.queries), g.queries, tt.wantQueries)
			}
		})
	}
}

func TestResolve_ProviderErrorFallsBack(t *testing.T) {
	g := &fakeGeocoder{err: errors.New("timeout")}
	r := NewResolver(g, &noopLimiter{}, "Lima", nil)

	got := r.Resolve(context.Background(), "Jr. de la Unión 300", "", "Lima")
	if got == nil || *got != LimaCenter {
		t.Errorf("Resolve() = %+v, want Lima center", got)
	}
	if len(g.queries) != 1 {
		t.Errorf("made %d queries, want 1 without a district", len(g.queries))
	}
}

func TestResolve_RejectsOutOfRangeMatch(t *testing.T) {
	g := &fakeGeocoder{answers: map[string]*Match{
		"Calle 1, Cusco, Perú": {Point: catalog.Point{Lat: 120, Lng: 0}},
	}}
	r := NewResolver(g, &noopLimiter{}, "Lima", nil)
	if got := r.Resolve(context.Background(), "Calle 1", "", "Cusco"); got != nil {
		t.Errorf("Resolve() = %+v, want nil", got)
	}
}

func TestIntervalLimiter_SpacesRequests(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration

	l := NewIntervalLimiter(time.Second)
	l.now = func() time.Time { return now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	want := []time.Duration{0, time.Second, 2 * time.Second}
	for i, d := range want {
		if slept[i] != d {
			t.Errorf("wait %d slept %v, want %v", i, slept[i], d)
		}
	}

	now = now.Add(10 * time.Second)
	_ = l.Wait(context.Background())
	if got := slept[len(slept)-1]; got != 0 {
		t.Errorf("idle limiter slept %v, want 0", got)
	}
}

func TestIntervalLimiter_EnforcesMinimum(t *testing.T) {
	if l := NewIntervalLimiter(10 * time.Millisecond); l.interval != MinInterval {
		t.Errorf("interval = %v, want %v", l.interval, MinInterval)
	}
}

func TestIntervalLimiter_ContextCancelled(t *testing.T) {
	l := NewIntervalLimiter(time.Second)
	_ = l.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestNominatim_Geocode(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		if r.URL.Query().Get("countrycodes") != "pe" || r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected params %v", r.URL.Query())
		}
		w.Header().Set("Content-Type", "application/json")
		if gotQuery == "nowhere" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"-12.1211","lon":"-77.0297","display_name":"Miraflores, Lima"}]`))
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "agenda-test/1.0", srv.Client())

	m, err := n.Geocode(context.Background(), "Av. Larco 123, Miraflores")
	if err != nil {
		t.Fatalf("Geocode failed: %v", err)
	}
	if m == nil || m.Point.Lat != -12.1211 || m.Point.Lng != -77.0297 {
		t.Errorf("Geocode() = %+v", m)
	}
	if gotQuery != "Av. Larco 123, Miraflores" || gotAgent != "agenda-test/1.0" {
		t.Errorf("query %q agent %q", gotQuery, gotAgent)
	}

	m, err = n.Geocode(context.Background(), "nowhere")
	if err != nil || m != nil {
		t.Errorf("Geocode(nowhere) = %+v, %v; want nil, nil", m, err)
	}
}

func TestNominatim_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "agenda-test/1.0", srv.Client())
	if _, err := n.Geocode(context.Background(), "x"); err == nil {
		t.Error("expected error on 429")
	}
}

func TestRedisLimiter_SharedSlot(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
	}
	defer client.Close()

	key := "agenda:test:geocode:" + time.Now().Format("150405.000000")
	defer client.Del(ctx, key)

	a := NewRedisLimiter(client, key, time.Second)
	b := NewRedisLimiter(client, key, time.Second)

	start := time.Now()
	if err := a.Wait(ctx); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("second Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("second caller acquired after %v, want about 1s", elapsed)
	}
}
