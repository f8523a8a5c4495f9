// Package embedding turns text into fixed-length vectors for semantic search.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Dimensions is the vector length stored in the catalog.
const Dimensions = 1536

var (
	// ErrNotConfigured is returned when no embedding provider credentials are set.
	ErrNotConfigured = errors.New("embedding provider not configured")

	// ErrEmptyEmbedding is returned when the provider answers without a vector.
	ErrEmptyEmbedding = errors.New("no embedding returned")

	// ErrDimensionMismatch is returned when a vector does not have the expected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder generates an embedding for one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	OllamaURL  string
	Dimensions int // 0 skips the length check
}

// New returns the configured Embedder, or ErrNotConfigured when the selected
// provider lacks credentials.
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, ErrNotConfigured
		}
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions), nil
	case ProviderOllama:
		if cfg.OllamaURL == "" {
			return nil, ErrNotConfigured
		}
		return NewOllama(cfg.OllamaURL, cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func checkDimensions(vec []float32, want int) error {
	if len(vec) == 0 {
		return ErrEmptyEmbedding
	}
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}
