// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/report-extract/pkg/types"
)

// Default model identifiers per backend.
var defaultModels = map[types.AIBackendName]string{
	types.BackendClaude: "claude-sonnet-4-5-20250929",
	types.BackendOpenAI: "gpt-4o-mini",
	types.BackendGemini: "gemini-2.5-flash",
	types.BackendOllama: "llama3.1",
}

// DefaultModel returns the model used for backend when none is configured.
func DefaultModel(backend types.AIBackendName) string {
	return defaultModels[backend]
}

// ResolveBackendName picks the backend for cfg. An unset backend selects
// claude when an API key is present and the offline rules backend
// otherwise.
func ResolveBackendName(cfg types.AIConfig) types.AIBackendName {
	if cfg.Backend != "" {
		return cfg.Backend
	}
	if cfg.APIKey != "" {
		return types.BackendClaude
	}
	return types.BackendRules
}

// NewBackend constructs the backend named by cfg.
func NewBackend(ctx context.Context, cfg types.AIConfig) (Backend, error) {
	name := ResolveBackendName(cfg)
	model := cfg.Model
	if model == "" {
		model = DefaultModel(name)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch name {
	case types.BackendClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude backend requires an API key")
		}
		return &ClaudeBackend{
			APIKey:      cfg.APIKey,
			Model:       model,
			Temperature: cfg.Temperature,
			URL:         cfg.BaseURL,
			Client:      client,
		}, nil
	case types.BackendOpenAI:
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai backend requires an API key")
		}
		return NewOpenAIBackend(cfg.APIKey, model, cfg.BaseURL, cfg.Temperature, client), nil
	case types.BackendGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini backend requires an API key")
		}
		return NewGeminiBackend(ctx, cfg.APIKey, model, cfg.BaseURL, cfg.Temperature, client)
	case types.BackendOllama:
		return NewOllamaBackend(cfg.BaseURL, model, cfg.Temperature, client)
	case types.BackendRules:
		return RulesBackend{}, nil
	}
	return nil, fmt.Errorf("unknown extraction backend %q", name)
}
