//go:build integration

package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newPostgresDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("agenda"),
		postgres.WithUsername("agenda"),
		postgres.WithPassword("agenda"),
		postgres.WithInitScripts(filepath.Join("..", "..", "migrations", "000001_events.up.sql")),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to build connection string: %v", err)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresEventStore_RoundTrip(t *testing.T) {
	db := newPostgresDB(t)
	store := NewPostgresEventStore(db, nil)
	ctx := context.Background()

	vec := make([]float32, 1536)
	vec[0] = 1
	theatre := &Event{
		Title:     "Hamlet en el Británico",
		Category:  "teatro",
		District:  "Miraflores",
		EventDate: day(2030, 3, 15),
		IsActive:  true,
		Embedding: vec,
	}
	free := &Event{Title: "Feria de libros", Category: "ferias", IsFree: true, EventDate: day(2030, 3, 16), IsActive: true}
	for _, e := range []*Event{theatre, free} {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	listed, err := store.ListByDateRange(ctx, *day(2030, 3, 15), *day(2030, 3, 16), 10)
	if err != nil {
		t.Fatalf("ListByDateRange failed: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != theatre.ID {
		t.Fatalf("unexpected listing %+v", listed)
	}
	if !listed[1].IsFree || listed[1].PriceMax == nil || *listed[1].PriceMax != 0 {
		t.Error("free price not persisted")
	}

	hits, err := store.HybridSearch(ctx, HybridQuery{Text: "teatro", Embedding: vec, Limit: 10})
	if err != nil {
		t.Fatalf("HybridSearch failed: %v", err)
	}
	if len(hits) == 0 || hits[0].Event.ID != theatre.ID {
		t.Fatalf("expected theatre hit, got %+v", hits)
	}
	if hits[0].TextScore <= 0 || hits[0].VectorScore < 0.99 {
		t.Errorf("scores = %v/%v", hits[0].TextScore, hits[0].VectorScore)
	}

	// A full-title match must clear the quality gate's 0.4 threshold without an embedding.
	byTitle, err := store.HybridSearch(ctx, HybridQuery{Text: "Hamlet en el Británico", Limit: 10})
	if err != nil {
		t.Fatalf("HybridSearch(title) failed: %v", err)
	}
	if len(byTitle) == 0 || byTitle[0].Event.ID != theatre.ID || byTitle[0].TextScore < 0.4 {
		t.Errorf("title hits = %+v", byTitle)
	}

	textOnly, err := store.HybridSearch(ctx, HybridQuery{Text: "libros", Limit: 10})
	if err != nil {
		t.Fatalf("HybridSearch(text only) failed: %v", err)
	}
	if len(textOnly) != 1 || textOnly[0].Event.ID != free.ID {
		t.Errorf("unexpected text-only hits %+v", textOnly)
	}

	found, err := store.FindByTitleFragment(ctx, "hamlet en el")
	if err != nil || found == nil || found.ID != theatre.ID {
		t.Errorf("FindByTitleFragment = %v, %v", found, err)
	}

	missing, err := store.ListMissingEmbedding(ctx, 10)
	if err != nil || len(missing) != 1 || missing[0].ID != free.ID {
		t.Fatalf("ListMissingEmbedding = %v, %v", missing, err)
	}
	if err := store.SetEmbedding(ctx, free.ID, vec); err != nil {
		t.Fatalf("SetEmbedding failed: %v", err)
	}
	if err := store.SetLocation(ctx, theatre.ID, Point{Lat: -12.12, Lng: -77.03}); err != nil {
		t.Fatalf("SetLocation failed: %v", err)
	}
}

func TestPostgresURLStore(t *testing.T) {
	db := newPostgresDB(t)
	store := NewPostgresURLStore(db)
	ctx := context.Background()
	url := "https://example.pe/agenda"

	if err := store.Discover(ctx, &DiscoveredURL{URL: url, SearchQuery: "jazz"}); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if err := store.Discover(ctx, &DiscoveredURL{URL: url}); err != nil {
		t.Fatalf("re-Discover failed: %v", err)
	}
	if done, err := store.IsProcessed(ctx, url); err != nil || done {
		t.Fatalf("IsProcessed = %v, %v", done, err)
	}
	if err := store.MarkProcessed(ctx, url, time.Now()); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if done, _ := store.IsProcessed(ctx, url); !done {
		t.Error("expected processed")
	}
}
