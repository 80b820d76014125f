// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaHost is the address of a local Ollama server.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaBackend calls a local or remote Ollama server with JSON output.
type OllamaBackend struct {
	client      *api.Client
	model       string
	temperature float64
}

// NewOllamaBackend creates a backend for model served at host. An empty
// host uses DefaultOllamaHost.
func NewOllamaBackend(host, model string, temperature float64, httpClient *http.Client) (*OllamaBackend, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama host %q: %w", host, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaBackend{client: api.NewClient(base, httpClient), model: model, temperature: temperature}, nil
}

// Extract implements Backend.
func (o *OllamaBackend) Extract(ctx context.Context, chunk string) (Response, error) {
	prompt, err := renderPrompt(chunk)
	if err != nil {
		return Response{}, fmt.Errorf("rendering prompt: %w", err)
	}

	stream := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Stream:  &stream,
		Format:  json.RawMessage(`"json"`),
		Options: map[string]any{"temperature": o.temperature},
	}

	var reply strings.Builder
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("calling Ollama: %w", err)
	}
	return ParseResponse(reply.String())
}
