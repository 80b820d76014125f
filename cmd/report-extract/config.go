// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/report-extract/internal/container"
	"github.com/pdiddy/report-extract/internal/extract"
	"github.com/pdiddy/report-extract/internal/pipeline"
	"github.com/pdiddy/report-extract/internal/render"
	"github.com/pdiddy/report-extract/internal/secrets"
	"github.com/pdiddy/report-extract/internal/store"
	"github.com/pdiddy/report-extract/pkg/types"
)

const (
	defaultInput  = "../input/gearhead_weekly_report.docx"
	defaultOutput = "../output/entities.json"

	defaultTimeout = 120 * time.Second
)

// addExtractionFlags registers the model backend flags shared by extract,
// batch, and serve.
func addExtractionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend", "", "extraction backend: claude, openai, gemini, ollama, or rules (default: claude with an API key, rules otherwise)")
	f.String("model", "", "model identifier (default depends on backend)")
	f.String("api-key", "", "API key (default: .secrets/ key file or provider environment variable)")
	f.String("base-url", "", "override the provider endpoint")
	f.Duration("timeout", 0, "model request timeout (default 120s)")
	f.Int("max-retries", extract.DefaultMaxRetries, "retries after a failed model request (0 disables)")
	f.Float64("temperature", 0, "sampling temperature")
	f.Int("chunk-size", extract.DefaultChunkSize, "maximum characters sent per model request")
	f.Bool("strict", false, "fail when the model returns an item that does not match the entity schema")
}

// addRenderFlags registers the PDF rendering flags.
func addRenderFlags(cmd *cobra.Command, enabledByDefault bool) {
	f := cmd.Flags()
	f.Bool("render", enabledByDefault, "render a PDF copy of the document")
	f.Bool("require-pdf", false, "fail the run when PDF rendering fails")
	f.String("renderer", string(types.RenderTextBox), "PDF renderer: textbox or libreoffice")
	f.String("renderer-image", render.DefaultOfficeImage, "container image for the libreoffice renderer")
	f.Int("max-chars", render.DefaultMaxChars, "characters of document text placed on the textbox page")
	f.String("pdf", "", "PDF output path (default: input path with .pdf extension)")
}

// addHistoryFlag registers the run history directory flag.
func addHistoryFlag(cmd *cobra.Command) {
	cmd.Flags().String("history-dir", "", "directory of the run history database (empty disables history)")
}

// extractionConfig builds the extraction settings from flags, config
// file, environment, and loaded secrets.
func extractionConfig() types.ExtractionConfig {
	backend := types.AIBackendName(viper.GetString("backend"))
	timeout := viper.GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}

	retries := viper.GetInt("max-retries")
	ai := types.AIConfig{
		HTTPConfig:  types.HTTPConfig{Timeout: timeout},
		Backend:     backend,
		Model:       viper.GetString("model"),
		APIKey:      viper.GetString("api-key"),
		BaseURL:     viper.GetString("base-url"),
		MaxRetries:  &retries,
		Temperature: viper.GetFloat64("temperature"),
	}
	if ai.APIKey == "" {
		ai.APIKey = secrets.APIKey(loadedSecrets, backend)
	}

	return types.ExtractionConfig{
		AIConfig:  ai,
		ChunkSize: viper.GetInt("chunk-size"),
		Strict:    viper.GetBool("strict"),
	}
}

func renderConfig() types.RenderConfig {
	return types.RenderConfig{
		Backend:    types.RenderBackendName(viper.GetString("renderer")),
		Enabled:    viper.GetBool("render"),
		Required:   viper.GetBool("require-pdf"),
		MaxChars:   viper.GetInt("max-chars"),
		OutputPath: viper.GetString("pdf"),
	}
}

// newRenderer constructs the renderer named by cfg.
func newRenderer(ctx context.Context, cfg types.RenderConfig, image string) (render.Renderer, error) {
	switch cfg.Backend {
	case types.RenderTextBox, "":
		return render.TextBoxRenderer{MaxChars: cfg.MaxChars}, nil
	case types.RenderLibreOffice:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return render.NewContainerRenderer(ctx, rt, image)
	}
	return nil, fmt.Errorf("unknown renderer %q (want textbox or libreoffice)", cfg.Backend)
}

// buildDeps wires the pipeline collaborators for cfg. The returned
// cleanup closes the history store.
func buildDeps(ctx context.Context, cfg types.PipelineConfig) (pipeline.Deps, func(), error) {
	backend, err := extract.NewBackend(ctx, cfg.Extraction.AIConfig)
	if err != nil {
		return pipeline.Deps{}, nil, err
	}
	name := extract.ResolveBackendName(cfg.Extraction.AIConfig)
	logger.Info("using extraction backend", zap.String("backend", string(name)))

	deps := pipeline.Deps{
		Backend:     backend,
		BackendName: string(name),
		Log:         logger,
	}

	if cfg.Render.Enabled {
		r, err := newRenderer(ctx, cfg.Render, viper.GetString("renderer-image"))
		switch {
		case err != nil && cfg.Render.Required:
			return pipeline.Deps{}, nil, fmt.Errorf("pdf renderer: %w", err)
		case err != nil:
			logger.Warn("pdf renderer unavailable, skipping pdf", zap.Error(err))
		default:
			deps.Renderer = r
		}
	}

	cleanup := func() {}
	if cfg.Store.Dir != "" {
		st, err := store.Open(cfg.Store.Dir)
		if err != nil {
			return pipeline.Deps{}, nil, err
		}
		deps.History = st
		cleanup = func() { st.Close() }
	}
	return deps, cleanup, nil
}
