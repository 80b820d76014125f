// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/report-extract/internal/server"
	"github.com/pdiddy/report-extract/internal/store"
	"github.com/pdiddy/report-extract/pkg/types"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction over HTTP",
	Long: `Serve exposes the pipeline over HTTP:

  GET  /healthz        liveness and backend name
  POST /v1/extract     multipart field "file" with a DOCX report; returns the output document
  GET  /v1/runs        stored runs (requires --history-dir)
  GET  /v1/runs/{id}   entities of one stored run`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Int64("max-upload", server.DefaultMaxUploadBytes, "maximum accepted DOCX size in bytes")
	serveCmd.Flags().String("work-dir", "", "directory for uploaded documents (default: system temp dir)")
	addExtractionFlags(serveCmd)
	addRenderFlags(serveCmd, false)
	addHistoryFlag(serveCmd)

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := types.PipelineConfig{
		Render:     renderConfig(),
		Extraction: extractionConfig(),
		Store:      types.StoreConfig{Dir: viper.GetString("history-dir")},
		Server: types.ServerConfig{
			Addr:           viper.GetString("addr"),
			MaxUploadBytes: viper.GetInt64("max-upload"),
			WorkDir:        viper.GetString("work-dir"),
		},
	}

	ctx := cmd.Context()
	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var runs server.Runs
	if st, ok := deps.History.(*store.Store); ok {
		runs = st
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(deps, cfg, runs).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
