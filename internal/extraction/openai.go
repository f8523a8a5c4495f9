package extraction

import (
	"context"
	"fmt"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/onnwee/agenda/internal/tracing"
)

// DefaultModel is used when no extraction model is configured.
const DefaultModel = "gpt-4o-mini"

const systemPrompt = `Eres un asistente que extrae eventos culturales de páginas web de Lima, Perú.
Responde únicamente con un objeto JSON de la forma {"events": [...]}.
Cada evento tiene exactamente estos campos de texto: title, description, date (YYYY-MM-DD),
time, venue, address, district, price, category.
Usa "" cuando un dato no aparece en el texto. No inventes datos.
Si no hay eventos, responde {"events": []}.`

// OpenAI extracts events through an OpenAI-compatible chat completion API in JSON mode.
type OpenAI struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

// NewOpenAI creates an OpenAI extractor. An empty baseURL uses the public endpoint.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{client: openai.NewClientWithConfig(config), model: model, now: time.Now}
}

// Extract submits text to the model and parses its JSON answer.
func (o *OpenAI) Extract(ctx context.Context, text string) (candidates []Candidate, err error) {
	ctx, endSpan := tracing.StartProviderSpan(ctx, "openai", "extract")
	defer func() { endSpan(err) }()

	temperature := float32(0)
	user := fmt.Sprintf("Fecha de hoy: %s.\n\nTexto:\n%s", o.now().Format("2006-01-02"), text)
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrUnparsable
	}
	return ParseCandidates(resp.Choices[0].Message.Content)
}
