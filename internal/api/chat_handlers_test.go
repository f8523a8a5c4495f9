package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/chat"
	"github.com/onnwee/agenda/internal/middleware"
	"github.com/onnwee/agenda/internal/retrieval"
)

type stubResolver struct {
	resp *chat.Response
	err  error
	got  *chat.Request
}

func (s *stubResolver) Resolve(_ context.Context, req chat.Request) (*chat.Response, error) {
	s.got = &req
	return s.resp, s.err
}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to parse error body: %v, body: %s", err, body)
	}
	return resp
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		resolver   *stubResolver
		wantStatus int
		wantCode   string
	}{
		{"wrong method", http.MethodGet, "", &stubResolver{}, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed},
		{"invalid json", http.MethodPost, `{"message":`, &stubResolver{}, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing message", http.MethodPost, `{"forceWebSearch":true}`, &stubResolver{}, http.StatusBadRequest, ErrCodeValidation},
		{"blank message", http.MethodPost, `{"message":"   "}`, &stubResolver{}, http.StatusBadRequest, ErrCodeValidation},
		{"message too long", http.MethodPost, `{"message":"` + strings.Repeat("a", MaxChatMessageRune+1) + `"}`, &stubResolver{}, http.StatusBadRequest, ErrCodeValidation},
		{"body too large", http.MethodPost, `{"message":"` + strings.Repeat("a", MaxChatBodyBytes) + `"}`, &stubResolver{}, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge},
		{"catalog down", http.MethodPost, `{"message":"jazz"}`, &stubResolver{err: errors.New("connection refused")}, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"resolver rejects message", http.MethodPost, `{"message":"jazz"}`, &stubResolver{err: chat.ErrEmptyMessage}, http.StatusBadRequest, ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChatHandlers(tt.resolver, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
			req := httptest.NewRequest(tt.method, "/api/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.Chat(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := decodeError(t, w.Body.Bytes()).Error.Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestChat_Success(t *testing.T) {
	stub := &stubResolver{resp: &chat.Response{
		Response:    "Encontré 1 evento.",
		Events:      []chat.EventSummary{{ID: "e1", Title: "Hamlet"}},
		EventsCount: 1,
	}}
	h := NewChatHandlers(stub, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"teatro","forceWebSearch":true}`))
	w := httptest.NewRecorder()

	h.Chat(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if stub.got == nil || stub.got.Message != "teatro" || !stub.got.ForceWebSearch {
		t.Errorf("resolver got %+v", stub.got)
	}
	var resp chat.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.EventsCount != 1 || len(resp.Events) != 1 || resp.Events[0].Title != "Hamlet" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestChat_EndToEndWithInMemoryCatalog(t *testing.T) {
	store := catalog.NewInMemoryEventStore()
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	for _, title := range []string{"Hamlet", "La casa de Bernarda Alba"} {
		e := &catalog.Event{Title: title, Category: "Teatro", EventDate: &date, IsActive: true}
		if err := store.Insert(context.Background(), e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	now := func() time.Time { return time.Date(2026, 3, 11, 17, 0, 0, 0, time.UTC) }
	resolver := chat.NewResolver(retrieval.NewRetriever(store, retrieval.WithClock(now)), chat.WithClock(now))

	handler := middleware.Logging(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(
		http.HandlerFunc(NewChatHandlers(resolver, nil).Chat))
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"teatro este fin de semana"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp chat.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.EventsCount != 2 || len(resp.Events) != 2 {
		t.Fatalf("eventsCount = %d, events = %d, want 2", resp.EventsCount, len(resp.Events))
	}
	if !strings.Contains(resp.Response, "2 eventos") {
		t.Errorf("response %q does not state the count", resp.Response)
	}
	if resp.Metadata.UsedEnrichment {
		t.Error("enrichment was not requested")
	}
}
