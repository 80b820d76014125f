// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// AIBackendName identifies the entity extraction backend.
type AIBackendName string

const (
	BackendClaude AIBackendName = "claude"
	BackendOpenAI AIBackendName = "openai"
	BackendGemini AIBackendName = "gemini"
	BackendOllama AIBackendName = "ollama"
	BackendRules  AIBackendName = "rules"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the model provider.
	Backend AIBackendName `json:"backend" yaml:"backend"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible gateways, Ollama host).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls.
	// Nil or negative selects the default of 3; zero disables retries.
	MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`

	// Temperature is the sampling temperature sent to the model (default 0).
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// ExtractionConfig holds settings for the entity extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline"`

	// ChunkSize is the maximum number of characters sent to the model in
	// one request (default 12000).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// Strict fails the run when the model returns an item that does not
	// match the entity schema. When false such items are dropped.
	Strict bool `json:"strict" yaml:"strict"`
}

// RenderBackendName identifies the PDF rendering tool.
type RenderBackendName string

const (
	RenderTextBox     RenderBackendName = "textbox"
	RenderLibreOffice RenderBackendName = "libreoffice"
)

// RenderConfig holds settings for the PDF rendering side effect.
type RenderConfig struct {
	// Backend selects the renderer: textbox or libreoffice.
	Backend RenderBackendName `json:"backend" yaml:"backend"`

	// Enabled turns rendering on. The rendered PDF is not consumed by the
	// rest of the pipeline.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Required turns a rendering failure into a run failure.
	Required bool `json:"required" yaml:"required"`

	// MaxChars is the number of characters of paragraph text placed on the
	// page (default 2000).
	MaxChars int `json:"max_chars" yaml:"max_chars"`

	// OutputPath overrides the default <input>.pdf destination.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`
}

// OutputFormat selects the serialization of the output document.
type OutputFormat string

const (
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

// OutputConfig holds settings for writing results.
type OutputConfig struct {
	// Path is the output document path.
	Path string `json:"path" yaml:"path"`

	// Format selects json or yaml.
	Format OutputFormat `json:"format" yaml:"format"`

	// XLSXPath, when set, also writes a spreadsheet export.
	XLSXPath string `json:"xlsx_path,omitempty" yaml:"xlsx_path,omitempty"`
}

// StoreConfig holds settings for the run history database.
type StoreConfig struct {
	// Dir is the directory holding the history database. Empty disables history.
	Dir string `json:"dir" yaml:"dir"`
}

// BatchConfig holds settings for processing many documents.
type BatchConfig struct {
	// Workers is the number of documents processed concurrently (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// OutputDir receives one <stem>.entities.json per input document.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`

	// MaxUploadBytes caps the accepted DOCX size (default 32 MiB).
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`

	// WorkDir holds uploaded documents while they are processed.
	WorkDir string `json:"work_dir" yaml:"work_dir"`
}

// PipelineConfig groups all stage configurations for one run.
type PipelineConfig struct {
	InputPath  string           `json:"input_path" yaml:"input_path"`
	Render     RenderConfig     `json:"render" yaml:"render"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Batch      BatchConfig      `json:"batch" yaml:"batch"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}
