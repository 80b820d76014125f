// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint in
// JSON object mode.
type OpenAIBackend struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIBackend creates a backend for model. An empty baseURL uses the
// public OpenAI endpoint. The SDK's own retries are disabled because
// ExtractEntities retries failed chunks.
func NewOpenAIBackend(apiKey, model, baseURL string, temperature float64, httpClient *http.Client) *OpenAIBackend {
	var clientOpts []openaiopt.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		clientOpts = append(clientOpts, openaiopt.WithHTTPClient(httpClient))
	}
	clientOpts = append(clientOpts, openaiopt.WithMaxRetries(0))

	return &OpenAIBackend{
		client:      openai.NewClient(clientOpts...),
		model:       model,
		temperature: temperature,
	}
}

// Extract implements Backend.
func (b *OpenAIBackend) Extract(ctx context.Context, chunk string) (Response, error) {
	prompt, err := renderPrompt(chunk)
	if err != nil {
		return Response{}, fmt.Errorf("rendering prompt: %w", err)
	}

	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(b.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("calling OpenAI API: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: OpenAI API returned no choices", ErrInvalidResponse)
	}
	return ParseResponse(completion.Choices[0].Message.Content)
}
