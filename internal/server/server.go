// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/report-extract/internal/docx"
	"github.com/pdiddy/report-extract/internal/extract"
	"github.com/pdiddy/report-extract/internal/output"
	"github.com/pdiddy/report-extract/internal/pipeline"
	"github.com/pdiddy/report-extract/internal/store"
	"github.com/pdiddy/report-extract/pkg/types"
)

const (
	// DefaultMaxUploadBytes caps uploaded documents when no limit is configured.
	DefaultMaxUploadBytes = 32 << 20

	uploadField     = "file"
	defaultRunLimit = 20
)

// Runs lists stored runs.
type Runs interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	RunEntities(ctx context.Context, runID string) (types.Entities, error)
}

// Server handles extraction requests.
type Server struct {
	deps pipeline.Deps
	cfg  types.PipelineConfig
	runs Runs
	log  *zap.Logger
}

// New returns a server running the pipeline with deps and cfg. Each
// request overrides the input and output paths of cfg. A nil runs
// disables the history endpoints.
func New(deps pipeline.Deps, cfg types.PipelineConfig, runs Runs) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Server.WorkDir == "" {
		cfg.Server.WorkDir = os.TempDir()
	}
	deps.Progress = io.Discard
	return &Server{deps: deps, cfg: cfg, runs: runs, log: log}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", s.extract)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.runEntities)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"backend": s.deps.BackendName,
		"history": s.runs != nil,
	})
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	src, fh, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("multipart field %q: %w", uploadField, err))
		return
	}
	defer src.Close()

	jobDir := filepath.Join(s.cfg.Server.WorkDir, "report-extract-"+uuid.NewString())
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(jobDir)

	input := filepath.Join(jobDir, filepath.Base(filepath.Clean("/"+fh.Filename)))
	if err := saveUpload(input, src); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	cfg := s.cfg
	cfg.InputPath = input
	cfg.Output = types.OutputConfig{}
	cfg.Render.OutputPath = ""

	deps := s.deps
	deps.Log = s.log.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	res, err := pipeline.Run(r.Context(), deps, cfg)
	if err != nil {
		s.log.Warn("extraction failed", zap.String("file", fh.Filename), zap.Error(err))
		writeError(w, statusFor(err), err)
		return
	}

	// The rendered copy is removed with the job directory.
	res.Output.Document.PDFPath = ""
	writeJSON(w, http.StatusOK, res.Output)
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

type runJSON struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	ExtractedAt string           `json:"extracted_at"`
	Backend     string           `json:"backend,omitempty"`
	PDFPath     string           `json:"pdf_path,omitempty"`
	Statistics  types.Statistics `json:"statistics"`
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, errors.New("run history is disabled"))
		return
	}

	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON{
			ID:          run.ID,
			Filename:    run.Filename,
			ExtractedAt: run.ExtractedAt,
			Backend:     run.Backend,
			PDFPath:     run.PDFPath,
			Statistics:  run.Statistics,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) runEntities(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, errors.New("run history is disabled"))
		return
	}
	id := chi.URLParam(r, "id")
	e, err := s.runs.RunEntities(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     id,
		"entities":   e,
		"statistics": output.Stats(e),
	})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, docx.ErrNotFound), errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, docx.ErrFormatMismatch), errors.Is(err, docx.ErrInvalidDocument):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrInvalidResponse), errors.Is(err, output.ErrInvalidOutput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case pipeline.FailedStage(err) == pipeline.StageExtract:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
