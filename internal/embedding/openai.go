package embedding

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/onnwee/agenda/internal/tracing"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAI generates embeddings through an OpenAI-compatible API.
type OpenAI struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAI creates an OpenAI embedder. An empty baseURL uses the public endpoint.
func NewOpenAI(apiKey, baseURL, model string, dimensions int) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
	}
}

// Embed generates the embedding of text.
func (m *OpenAI) Embed(ctx context.Context, text string) (vec []float32, err error) {
	ctx, endSpan := tracing.StartProviderSpan(ctx, "openai", "embed")
	defer func() { endSpan(err) }()

	resp, err := m.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(m.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyEmbedding
	}
	vec = resp.Data[0].Embedding
	if err := checkDimensions(vec, m.dimensions); err != nil {
		return nil, err
	}
	return vec, nil
}
