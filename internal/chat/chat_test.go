package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/embedding"
	"github.com/onnwee/agenda/internal/enrichment"
	"github.com/onnwee/agenda/internal/intent"
	"github.com/onnwee/agenda/internal/retrieval"
)

// Wednesday 2026-03-11 at noon in Lima.
var now = time.Date(2026, 3, 11, 17, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func date(d int) *time.Time {
	t := time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newStore(t *testing.T, events ...*catalog.Event) *catalog.InMemoryEventStore {
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

type fakeEnricher struct {
	store  *catalog.InMemoryEventStore
	add    []*catalog.Event
	called int
}

func (f *fakeEnricher) Enrich(ctx context.Context, _ intent.Query) enrichment.Stats {
	f.called++
	for _, e := range f.add {
		e.IsActive = true
		_ = f.store.Insert(ctx, e)
	}
	return enrichment.Stats{NewEventsFound: len(f.add), URLsProcessed: 1}
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return []float32{1, 0}, f.err
}

func TestResolve_EmptyMessage(t *testing.T) {
	r := NewResolver(retrieval.NewRetriever(newStore(t)))
	if _, err := r.Resolve(context.Background(), Request{Message: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestResolve_DateBranchSkipsEmbedding(t *testing.T) {
	store := newStore(t,
		&catalog.Event{Title: "Concierto gratis", PriceText: "Ingreso libre", EventDate: date(14), District: "Barranco", Location: &catalog.Point{Lat: -12.14, Lng: -77.02}},
		&catalog.Event{Title: "Obra pagada", PriceText: "S/ 60", EventDate: date(13)},
	)
	emb := &fakeEmbedder{}
	r := NewResolver(retrieval.NewRetriever(store), WithEmbedder(emb), WithClock(clock))

	resp, err := r.Resolve(context.Background(), Request{Message: "¿Qué hay gratis este fin de semana?"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times on date branch", emb.calls)
	}
	if resp.EventsCount != 1 || len(resp.Events) != 1 {
		t.Fatalf("got %d events, want 1", resp.EventsCount)
	}
	ev := resp.Events[0]
	if ev.Title != "Concierto gratis" || ev.Date != "2026-03-14" || ev.Latitude == nil || *ev.Latitude != -12.14 {
		t.Errorf("unexpected summary %+v", ev)
	}
	if !resp.Metadata.Intent.FreeOnly || resp.Metadata.Intent.Dates == nil {
		t.Errorf("intent = %+v", resp.Metadata.Intent)
	}
	if !strings.HasPrefix(resp.Response, "Encontré 1 evento") {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.Metadata.UsedEnrichment || resp.Metadata.EnrichmentStats != nil {
		t.Error("enrichment should not run without forceWebSearch")
	}
}

func TestResolve_EnrichmentOnlyWhenRequested(t *testing.T) {
	tests := []struct {
		name       string
		force      bool
		seed       int
		wantCalled int
	}{
		{"inadequate without request", false, 0, 0},
		{"inadequate with request", true, 0, 1},
		{"adequate with request", true, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seed []*catalog.Event
			for i := 0; i < tt.seed; i++ {
				seed = append(seed, &catalog.Event{Title: fmt.Sprintf("Jazz %d", i), Category: "musica"})
			}
			store := newStore(t, seed...)
			enr := &fakeEnricher{store: store, add: []*catalog.Event{
				{Title: "Jazz en el parque", Category: "musica"},
			}}
			r := NewResolver(retrieval.NewRetriever(store, retrieval.WithClock(clock)),
				WithEnricher(enr), WithClock(clock))

			resp, err := r.Resolve(context.Background(), Request{Message: "jazz", ForceWebSearch: tt.force})
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if enr.called != tt.wantCalled {
				t.Errorf("enricher called %d times, want %d", enr.called, tt.wantCalled)
			}
			if resp.Metadata.UsedEnrichment != (tt.wantCalled > 0) {
				t.Errorf("UsedEnrichment = %v", resp.Metadata.UsedEnrichment)
			}
			if tt.wantCalled > 0 {
				if resp.Metadata.EnrichmentStats == nil || resp.Metadata.EnrichmentStats.NewEventsFound != 1 {
					t.Errorf("EnrichmentStats = %+v", resp.Metadata.EnrichmentStats)
				}
				if resp.EventsCount != 1 || resp.Events[0].Title != "Jazz en el parque" {
					t.Errorf("re-retrieval missing enriched event: %+v", resp.Events)
				}
			}
		})
	}
}

func TestResolve_DisplayCapMatchesCount(t *testing.T) {
	var seed []*catalog.Event
	for i := 0; i < 30; i++ {
		seed = append(seed, &catalog.Event{Title: fmt.Sprintf("Teatro %02d", i), Category: "Teatro", EventDate: date(12)})
	}
	r := NewResolver(retrieval.NewRetriever(newStore(t, seed...)), WithClock(clock))

	resp, err := r.Resolve(context.Background(), Request{Message: "teatro mañana"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resp.EventsCount != DefaultDisplayCap || len(resp.Events) != DefaultDisplayCap {
		t.Errorf("EventsCount = %d, events = %d, want %d", resp.EventsCount, len(resp.Events), DefaultDisplayCap)
	}
	if !strings.HasPrefix(resp.Response, fmt.Sprintf("Encontré %d eventos", DefaultDisplayCap)) {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestResolve_EmbeddingFailureFallsBackToText(t *testing.T) {
	store := newStore(t, &catalog.Event{Title: "Hamlet", Category: "teatro"})
	emb := &fakeEmbedder{err: embedding.ErrNotConfigured}
	r := NewResolver(retrieval.NewRetriever(store, retrieval.WithClock(clock)), WithEmbedder(emb), WithClock(clock))

	resp, err := r.Resolve(context.Background(), Request{Message: "hamlet"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if emb.calls != 1 || resp.EventsCount != 1 {
		t.Errorf("embed calls %d, events %d", emb.calls, resp.EventsCount)
	}
}

func TestResolve_UsesLimaCalendarDay(t *testing.T) {
	// 02:00 UTC on Thursday is still Wednesday evening in Lima.
	late := time.Date(2026, 3, 12, 2, 0, 0, 0, time.UTC)
	store := newStore(t,
		&catalog.Event{Title: "Miércoles", EventDate: date(11)},
		&catalog.Event{Title: "Jueves", EventDate: date(12)},
	)
	r := NewResolver(retrieval.NewRetriever(store), WithClock(func() time.Time { return late }))

	resp, err := r.Resolve(context.Background(), Request{Message: "qué hay hoy"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resp.EventsCount != 1 || resp.Events[0].Title != "Miércoles" {
		t.Errorf("events = %+v", resp.Events)
	}
}

func TestSummarize_FreeWithoutText(t *testing.T) {
	zero := 0.0
	s := Summarize(&catalog.Event{ID: "e1", Title: "Expo", IsFree: true, PriceMin: &zero, PriceMax: &zero})
	if s.Price != "Gratis" || s.Latitude != nil || s.Date != "" {
		t.Errorf("Summarize() = %+v", s)
	}
}

func TestResolve_Metrics(t *testing.T) {
	m := NewMetrics()
	if err := m.Register(prometheus.NewRegistry()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	r := NewResolver(retrieval.NewRetriever(newStore(t)), WithMetrics(m), WithClock(clock))
	if _, err := r.Resolve(context.Background(), Request{Message: "jazz"}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	var metric dto.Metric
	if err := m.gate.WithLabelValues("false").Write(&metric); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Errorf("inadequate decisions = %v, want 1", got)
	}
}
