package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/onnwee/agenda/internal/tracing"
)

// DefaultOllamaModel is used when no model is configured.
const DefaultOllamaModel = "nomic-embed-text"

// Ollama generates embeddings through a local Ollama server.
type Ollama struct {
	client     *ollama.Client
	model      string
	dimensions int
}

// NewOllama creates an Ollama embedder for the server at baseURL.
func NewOllama(baseURL, model string, dimensions int) (*Ollama, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	hc := &http.Client{Timeout: 60 * time.Second}
	return &Ollama{
		client:     ollama.NewClient(parsedURL, hc),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed generates the embedding of text.
func (m *Ollama) Embed(ctx context.Context, text string) (vec []float32, err error) {
	ctx, endSpan := tracing.StartProviderSpan(ctx, "ollama", "embed")
	defer func() { endSpan(err) }()

	resp, err := m.client.Embed(ctx, &ollama.EmbedRequest{
		Model: m.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get embeddings from ollama: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, ErrEmptyEmbedding
	}
	vec = resp.Embeddings[0]
	if err := checkDimensions(vec, m.dimensions); err != nil {
		return nil, err
	}
	return vec, nil
}
