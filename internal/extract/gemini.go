// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// contentGenerator is the part of the genai Models service the backend
// uses. Tests substitute a fake.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBackend calls the Gemini API with a JSON response MIME type.
type GeminiBackend struct {
	models      contentGenerator
	model       string
	temperature float32
}

// NewGeminiBackend creates a Gemini API client for model. An empty baseURL
// uses the public endpoint.
func NewGeminiBackend(ctx context.Context, apiKey, model, baseURL string, temperature float64, httpClient *http.Client) (*GeminiBackend, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	if client.Models == nil {
		return nil, fmt.Errorf("gemini client is missing the Models service")
	}
	return &GeminiBackend{models: client.Models, model: model, temperature: float32(temperature)}, nil
}

// Extract implements Backend.
func (g *GeminiBackend) Extract(ctx context.Context, chunk string) (Response, error) {
	prompt, err := renderPrompt(chunk)
	if err != nil {
		return Response{}, fmt.Errorf("rendering prompt: %w", err)
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	temp := g.temperature
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		Temperature:       &temp,
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return Response{}, fmt.Errorf("calling Gemini API: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, fmt.Errorf("%w: Gemini API returned no candidates", ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return ParseResponse(text.String())
}
