// Package compose writes the narrative reply for a set of results. The reply
// states how many events are shown and frames them by the parsed facets. It
// never names a venue, time or title; the events are rendered separately.
package compose

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/agenda/internal/intent"
	"github.com/onnwee/agenda/internal/retrieval"
)

var categoryLabels = map[string]string{
	"humor":        "de humor",
	"teatro":       "de teatro",
	"musica":       "de música",
	"danza":        "de danza",
	"cine":         "de cine",
	"exposiciones": "de exposiciones y arte",
	"literatura":   "de literatura",
	"talleres":     "de talleres",
	"gastronomia":  "gastronómicos",
	"infantil":     "para niños",
	"ferias":       "de ferias",
	"festivales":   "de festivales",
}

var months = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Compose returns the reply for the results being shown. enriched reports
// whether a web search ran during the request.
func Compose(q intent.Query, results []retrieval.Result, enriched bool) string {
	n := len(results)
	framing := frame(q, n)

	var b strings.Builder
	switch n {
	case 0:
		b.WriteString("No encontré eventos")
		b.WriteString(framing)
		b.WriteString(" en la agenda.")
		switch {
		case enriched:
			b.WriteString(" También busqué en la web, pero no apareció nada nuevo. Prueba con otras fechas o con otra zona.")
		case !q.ForceWebSearch:
			b.WriteString(" Si quieres, puedo buscar en la web.")
		default:
			b.WriteString(" Prueba con otras fechas o con otra zona.")
		}
		return b.String()
	case 1:
		b.WriteString("Encontré 1 evento")
	default:
		b.WriteString("Encontré ")
		b.WriteString(strconv.Itoa(n))
		b.WriteString(" eventos")
	}
	b.WriteString(framing)
	b.WriteString(".")
	if enriched {
		b.WriteString(" Incluye resultados encontrados en la web.")
	}
	if n == 1 {
		b.WriteString(" Te dejo los detalles abajo.")
	} else {
		b.WriteString(" Te los muestro abajo.")
	}
	return b.String()
}

// frame renders the facets of q as a phrase starting with a space, or "".
func frame(q intent.Query, n int) string {
	var parts []string
	if label, ok := categoryLabels[q.Category]; ok {
		parts = append(parts, label)
	}
	if q.FreeOnly {
		if n == 1 {
			parts = append(parts, "gratuito")
		} else {
			parts = append(parts, "gratuitos")
		}
	} else if q.MaxPrice != nil {
		parts = append(parts, "de hasta S/ "+formatAmount(*q.MaxPrice))
	}
	if q.District != "" {
		parts = append(parts, "en "+q.District)
	}
	if q.Dates != nil {
		parts = append(parts, formatRange(*q.Dates))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatRange(r intent.DateRange) string {
	if r.Start.Equal(r.End) {
		return "para el " + formatDay(r.Start)
	}
	if r.Start.Year() == r.End.Year() && r.Start.Month() == r.End.Month() {
		return fmt.Sprintf("entre el %d y el %s", r.Start.Day(), formatDay(r.End))
	}
	return fmt.Sprintf("entre el %s y el %s", formatDay(r.Start), formatDay(r.End))
}

func formatDay(t time.Time) string {
	return fmt.Sprintf("%d de %s", t.Day(), months[t.Month()-1])
}
