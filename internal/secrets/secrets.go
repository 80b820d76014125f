// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads model provider API keys from a directory of
// plain-text files. Each file holds one secret: the filename is the key
// name and the trimmed file contents are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/report-extract/pkg/types"
)

// Key file names, one per hosted extraction backend.
const (
	AnthropicKey = "anthropic-api-key"
	OpenAIKey    = "openai-api-key"
	GeminiKey    = "gemini-api-key"
)

// envVars lists the environment variables consulted when no key file is
// present, in order of preference.
var envVars = map[string][]string{
	AnthropicKey: {"ANTHROPIC_API_KEY"},
	OpenAIKey:    {"OPENAI_API_KEY"},
	GeminiKey:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, log *zap.Logger) (map[string]string, error) {
	if log == nil {
		log = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// KeyName returns the secret file name holding the API key for backend.
// Backends that need no key return "".
func KeyName(backend types.AIBackendName) string {
	switch backend {
	case types.BackendClaude, "":
		return AnthropicKey
	case types.BackendOpenAI:
		return OpenAIKey
	case types.BackendGemini:
		return GeminiKey
	}
	return ""
}

// APIKey returns the key for backend from loaded secrets, falling back to
// the provider's environment variables.
func APIKey(secrets map[string]string, backend types.AIBackendName) string {
	name := KeyName(backend)
	if name == "" {
		return ""
	}
	if v := secrets[name]; v != "" {
		return v
	}
	for _, env := range envVars[name] {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return ""
}
