package compose

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/intent"
	"github.com/onnwee/agenda/internal/retrieval"
)

func results(n int) []retrieval.Result {
	out := make([]retrieval.Result, n)
	for i := range out {
		out[i] = retrieval.Result{
			Event: &catalog.Event{
				Title:     fmt.Sprintf("Obra secreta %d", i),
				Venue:     "Teatro Británico",
				EventTime: "20:00",
			},
			Score: 0.9,
		}
	}
	return out
}

func TestCompose_StatesExactCount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "No encontré eventos"},
		{1, "Encontré 1 evento"},
		{5, "Encontré 5 eventos"},
		{37, "Encontré 37 eventos"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			got := Compose(intent.Query{Text: "algo"}, results(tt.n), false)
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("Compose() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestCompose_NeverListsEventDetails(t *testing.T) {
	for _, n := range []int{1, 5, 37} {
		got := Compose(intent.Query{Text: "teatro", Category: "teatro"}, results(n), true)
		for _, forbidden := range []string{"Obra secreta", "Británico", "20:00"} {
			if strings.Contains(got, forbidden) {
				t.Errorf("reply for %d results mentions %q: %q", n, forbidden, got)
			}
		}
	}
}

func TestCompose_Framing(t *testing.T) {
	max := 50.0
	tests := []struct {
		name  string
		query intent.Query
		n     int
		want  []string
	}{
		{
			name: "free weekend",
			query: intent.Query{FreeOnly: true, Dates: &intent.DateRange{
				Start: time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			}},
			n:    4,
			want: []string{"Encontré 4 eventos gratuitos entre el 13 y el 15 de marzo."},
		},
		{
			name:  "category and district",
			query: intent.Query{Category: "teatro", District: "Miraflores"},
			n:     1,
			want:  []string{"Encontré 1 evento de teatro en Miraflores."},
		},
		{
			name:  "price ceiling",
			query: intent.Query{Category: "musica", MaxPrice: &max},
			n:     2,
			want:  []string{"eventos de música de hasta S/ 50."},
		},
		{
			name: "single day across months",
			query: intent.Query{Dates: &intent.DateRange{
				Start: time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
			}},
			n:    3,
			want: []string{"entre el 30 de marzo y el 2 de abril"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compose(tt.query, results(tt.n), false)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Compose() = %q, want it to contain %q", got, w)
				}
			}
		})
	}
}

func TestCompose_EmptyOffersWebSearch(t *testing.T) {
	if got := Compose(intent.Query{}, nil, false); !strings.Contains(got, "buscar en la web") {
		t.Errorf("Compose() = %q, want web search suggestion", got)
	}
	if got := Compose(intent.Query{ForceWebSearch: true}, nil, true); !strings.Contains(got, "busqué en la web") {
		t.Errorf("Compose() = %q, want enrichment note", got)
	}
}
