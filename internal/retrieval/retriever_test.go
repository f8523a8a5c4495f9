package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/intent"
)

var fixedNow = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

func day(d int) *time.Time {
	t := time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func f64(v float64) *float64 { return &v }

func seed(t *testing.T, events ...*catalog.Event) *catalog.InMemoryEventStore {
	t.Helper()
	store := catalog.NewInMemoryEventStore()
	for _, e := range events {
		e.IsActive = true
		if err := store.Insert(context.Background(), e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	return store
}

func TestRetrieve_DateBranch(t *testing.T) {
	store := seed(t,
		&catalog.Event{Title: "Sábado", EventDate: day(14)},
		&catalog.Event{Title: "Viernes", EventDate: day(13)},
		&catalog.Event{Title: "Lunes", EventDate: day(16)},
	)
	r := NewRetriever(store, WithClock(func() time.Time { return fixedNow }))

	q := intent.Query{Text: "finde", Dates: &intent.DateRange{Start: *day(13), End: *day(15)}}
	results, err := r.Retrieve(context.Background(), q, []float32{1, 0})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Event.Title != "Viernes" || results[1].Event.Title != "Sábado" {
		t.Errorf("results not ordered by date: %q, %q", results[0].Event.Title, results[1].Event.Title)
	}
	for _, res := range results {
		if res.Score != DateMatchScore || !res.DateMatch {
			t.Errorf("date result %q has score %v, DateMatch %v", res.Event.Title, res.Score, res.DateMatch)
		}
	}
}

func TestRetrieve_HybridOrderingAndCap(t *testing.T) {
	var events []*catalog.Event
	for i := 0; i < 30; i++ {
		events = append(events, &catalog.Event{
			Title:     fmt.Sprintf("Concierto %02d", i),
			Category:  "musica",
			Embedding: []float32{1, float32(i) / 10},
		})
	}
	store := seed(t, events...)
	r := NewRetriever(store, WithCandidateCap(10), WithClock(func() time.Time { return fixedNow }))

	results, err := r.Retrieve(context.Background(), intent.Query{Text: "concierto"}, []float32{1, 0})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) > 10 {
		t.Errorf("got %d results, cap is 10", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted: %v > %v at %d", results[i].Score, results[i-1].Score, i)
		}
	}
	for _, res := range results {
		if res.Score < 0 || res.Score > 1 {
			t.Errorf("score %v out of range", res.Score)
		}
	}
	if results[0].Event.Title != "Concierto 00" {
		t.Errorf("best match = %q, want Concierto 00", results[0].Event.Title)
	}
}

func TestRetrieve_TextOnlyWithoutEmbedding(t *testing.T) {
	store := seed(t,
		&catalog.Event{Title: "Hamlet", Category: "teatro"},
		&catalog.Event{Title: "Noche de jazz", Category: "musica"},
	)
	r := NewRetriever(store, WithClock(func() time.Time { return fixedNow }))

	results, err := r.Retrieve(context.Background(), intent.Parse("hamlet", fixedNow), nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 1 || results[0].Event.Title != "Hamlet" || results[0].Score != 1 {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestRetrieve_ExcludesPastEvents(t *testing.T) {
	store := seed(t,
		&catalog.Event{Title: "Teatro pasado", Category: "teatro", EventDate: day(1)},
		&catalog.Event{Title: "Teatro futuro", Category: "teatro", EventDate: day(20)},
	)
	r := NewRetriever(store, WithClock(func() time.Time { return fixedNow }))

	results, _ := r.Retrieve(context.Background(), intent.Query{Text: "teatro"}, nil)
	if len(results) != 1 || results[0].Event.Title != "Teatro futuro" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestRetrieve_PostFilters(t *testing.T) {
	store := seed(t,
		&catalog.Event{Title: "Hamlet", Category: "Teatro", District: "Miraflores", PriceText: "S/ 40", EventDate: day(14)},
		&catalog.Event{Title: "Microteatro", Category: "Artes escénicas", Venue: "Casa de Miraflores", PriceText: "S/ 90", EventDate: day(14)},
		&catalog.Event{Title: "Obra infantil", Category: "teatro", District: "Barranco", PriceText: "Ingreso libre", EventDate: day(14)},
		&catalog.Event{Title: "Rock", Category: "musica", District: "Miraflores", EventDate: day(14)},
		&catalog.Event{Title: "Sin precio", Category: "teatro", District: "Miraflores", PriceText: "Consultar", EventDate: day(14)},
	)
	r := NewRetriever(store)
	dates := &intent.DateRange{Start: *day(13), End: *day(15)}

	tests := []struct {
		name  string
		query intent.Query
		want  []string
	}{
		{
			name:  "category",
			query: intent.Query{Dates: dates, Category: "teatro"},
			want:  []string{"Hamlet", "Microteatro", "Obra infantil", "Sin precio"},
		},
		{
			name:  "category and location",
			query: intent.Query{Dates: dates, Category: "teatro", District: "Miraflores"},
			want:  []string{"Hamlet", "Microteatro", "Sin precio"},
		},
		{
			name:  "price ceiling keeps unparsable prices",
			query: intent.Query{Dates: dates, Category: "teatro", District: "Miraflores", MaxPrice: f64(50)},
			want:  []string{"Hamlet", "Sin precio"},
		},
		{
			name:  "free only",
			query: intent.Query{Dates: dates, FreeOnly: true},
			want:  []string{"Obra infantil"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := r.Retrieve(context.Background(), tt.query, nil)
			if err != nil {
				t.Fatalf("Retrieve failed: %v", err)
			}
			got := map[string]bool{}
			for _, res := range results {
				got[res.Event.Title] = true
			}
			if len(got) != len(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			for _, w := range tt.want {
				if !got[w] {
					t.Errorf("missing %q in %v", w, got)
				}
			}
		})
	}
}

func TestIsFree_IgnoresUnsetFlag(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name  string
		event catalog.Event
		want  bool
	}{
		{"free text", catalog.Event{PriceText: "Entrada gratuita"}, true},
		{"zero min", catalog.Event{PriceMin: &zero}, true},
		{"paid", catalog.Event{PriceText: "S/ 20", PriceMin: f64(20)}, false},
		{"no data", catalog.Event{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFree(&tt.event); got != tt.want {
				t.Errorf("IsFree() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFree_NormalizedPaidPrices(t *testing.T) {
	for _, text := range []string{"S/ 1,500.00", "Preventa 2x1: S/ 80"} {
		e := &catalog.Event{}
		e.ApplyPrice(catalog.NormalizePrice(text))
		if IsFree(e) {
			t.Errorf("event priced %q passes the free-only filter", text)
		}
	}
}

func TestMatchesLocation_WordBoundary(t *testing.T) {
	e := &catalog.Event{Title: "Teatro de verano", District: "Surco"}
	if MatchesLocation(e, "Ate") {
		t.Error("Ate should not match inside teatro")
	}
	if !MatchesLocation(e, "Santiago de Surco") {
		t.Error("district variant should match")
	}
}

type failingStore struct{ catalog.EventStore }

func (failingStore) HybridSearch(context.Context, catalog.HybridQuery) ([]catalog.SearchHit, error) {
	return nil, errors.New("connection refused")
}

func TestRetrieve_StoreError(t *testing.T) {
	r := NewRetriever(failingStore{})
	if _, err := r.Retrieve(context.Background(), intent.Query{Text: "jazz"}, nil); err == nil {
		t.Error("expected error")
	}
}

func TestRetrieve_Metrics(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	store := seed(t, &catalog.Event{Title: "Rock", Category: "musica", EventDate: day(14)})
	r := NewRetriever(store, WithMetrics(m))

	q := intent.Query{Dates: &intent.DateRange{Start: *day(13), End: *day(15)}, Category: "teatro"}
	if _, err := r.Retrieve(context.Background(), q, nil); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	var metric dto.Metric
	if err := m.filtered.WithLabelValues(FilterCategory).Write(&metric); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Errorf("filtered category = %v, want 1", got)
	}
	if err := m.retrievals.WithLabelValues(BranchDate).Write(&metric); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Errorf("date retrievals = %v, want 1", got)
	}
}
