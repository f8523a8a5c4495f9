// Package extraction turns the text of a web page into candidate events using
// a structured-output language model.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotConfigured is returned when the extraction provider has no credentials.
	ErrNotConfigured = errors.New("extraction provider not configured")

	// ErrUnparsable is returned when the model output is not a JSON array of events.
	ErrUnparsable = errors.New("unparsable extraction output")
)

// Candidate is an event extracted from free text. Fields may be empty.
type Candidate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"`
	Venue       string `json:"venue"`
	Address     string `json:"address"`
	District    string `json:"district"`
	Price       string `json:"price"`
	Category    string `json:"category"`
}

// Extractor extracts candidate events from a bounded text context.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Candidate, error)
}

// ParseCandidates decodes model output into candidates. It accepts a bare JSON
// array, an object wrapping the array under "events", surrounding prose and
// markdown code fences. Non-string scalar fields are coerced to strings.
func ParseCandidates(output string) ([]Candidate, error) {
	s := stripFences(strings.TrimSpace(output))

	var items []map[string]any
	if start := strings.IndexAny(s, "[{"); start >= 0 {
		s = s[start:]
	} else {
		return nil, ErrUnparsable
	}

	switch s[0] {
	case '[':
		end := strings.LastIndex(s, "]")
		if end < 0 || json.Unmarshal([]byte(s[:end+1]), &items) != nil {
			return nil, ErrUnparsable
		}
	case '{':
		end := strings.LastIndex(s, "}")
		var wrapper map[string]json.RawMessage
		if end < 0 || json.Unmarshal([]byte(s[:end+1]), &wrapper) != nil {
			return nil, ErrUnparsable
		}
		raw, ok := wrapper["events"]
		if !ok {
			raw, ok = wrapper["eventos"]
		}
		if !ok {
			// A single event object.
			if _, hasTitle := wrapper["title"]; !hasTitle {
				return nil, ErrUnparsable
			}
			raw = json.RawMessage("[" + s[:end+1] + "]")
		}
		if string(raw) == "null" {
			return []Candidate{}, nil
		}
		if json.Unmarshal(raw, &items) != nil {
			return nil, ErrUnparsable
		}
	}

	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, Candidate{
			Title:       field(item, "title"),
			Description: field(item, "description"),
			Date:        field(item, "date"),
			Time:        field(item, "time"),
			Venue:       field(item, "venue"),
			Address:     field(item, "address"),
			District:    field(item, "district"),
			Price:       field(item, "price"),
			Category:    field(item, "category"),
		})
	}
	return out, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func field(item map[string]any, key string) string {
	switch v := item[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
		return ""
	default:
		return ""
	}
}
