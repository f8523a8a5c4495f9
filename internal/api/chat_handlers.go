// Package api provides the HTTP handlers of the agenda service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/onnwee/agenda/internal/chat"
)

// Request limits for POST /api/chat.
const (
	MaxChatBodyBytes   = 16 << 10
	MaxChatMessageRune = 1000
)

// ChatResolver answers one chat request.
type ChatResolver interface {
	Resolve(ctx context.Context, req chat.Request) (*chat.Response, error)
}

// ChatHandlers holds dependencies for the chat endpoint.
type ChatHandlers struct {
	resolver ChatResolver
	logger   *slog.Logger
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(resolver ChatResolver, logger *slog.Logger) *ChatHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandlers{resolver: resolver, logger: logger}
}

// Chat handles POST /api/chat.
func (h *ChatHandlers) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeCodedError(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	var req chat.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxChatBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeCodedError(w, r, ErrCodePayloadTooLarge, "Request body too large")
			return
		}
		writeCodedError(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeCodedError(w, r, ErrCodeValidation, "message is required")
		return
	}
	if utf8.RuneCountInString(req.Message) > MaxChatMessageRune {
		writeCodedError(w, r, ErrCodeValidation, "message is too long")
		return
	}

	resp, err := h.resolver.Resolve(r.Context(), req)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			writeCodedError(w, r, ErrCodeValidation, "message is required")
			return
		}
		h.logger.ErrorContext(r.Context(), "chat resolution failed", slog.String("error", err.Error()))
		writeCodedError(w, r, ErrCodeUnavailable, "The event catalog is temporarily unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode chat response", slog.String("error", err.Error()))
	}
}
