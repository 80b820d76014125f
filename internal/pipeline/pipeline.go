// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the report extraction stages in order: read the
// document, render a PDF copy, extract entities, and write the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/report-extract/internal/docx"
	"github.com/pdiddy/report-extract/internal/extract"
	"github.com/pdiddy/report-extract/internal/output"
	"github.com/pdiddy/report-extract/internal/render"
	"github.com/pdiddy/report-extract/pkg/types"
)

// Stage names reported in StageError.
const (
	StageRead     = "read"
	StageRender   = "render"
	StageExtract  = "extract"
	StageValidate = "validate"
	StageWrite    = "write"
	StageExport   = "export"
	StageHistory  = "history"
)

// StageError records the stage at which a run failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded in err, or "" when err did not
// come from Run.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// History stores finished runs.
type History interface {
	SaveRun(ctx context.Context, o types.Output) error
}

// Deps holds the collaborators of a run. Backend is required; the rest
// are optional.
type Deps struct {
	Backend     extract.Backend
	BackendName string

	// Renderer produces the PDF copy. Nil skips rendering.
	Renderer render.Renderer

	// History receives the finished output. Nil skips saving.
	History History

	Log *zap.Logger

	// Progress receives one line per stage.
	Progress io.Writer

	Now      func() time.Time
	NewRunID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Progress == nil {
		d.Progress = io.Discard
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewRunID == nil {
		d.NewRunID = uuid.NewString
	}
	return d
}

// Result describes a finished run.
type Result struct {
	Output types.Output

	// OutputPath is the written output document; empty when no path was configured.
	OutputPath string

	// PDFPath is the rendered PDF; empty when rendering was skipped or failed.
	PDFPath string

	// RenderErr is the rendering failure of a run that continued without a PDF.
	RenderErr error

	XLSXPath string
}

// Run processes cfg.InputPath. Missing or non-DOCX input and extraction
// failures abort the run. A rendering failure is logged and recorded in
// Result.RenderErr unless cfg.Render.Required is set.
func Run(ctx context.Context, deps Deps, cfg types.PipelineConfig) (Result, error) {
	deps = deps.withDefaults()
	if deps.Backend == nil {
		return Result{}, fmt.Errorf("pipeline: no extraction backend")
	}
	log := deps.Log.With(zap.String("input", cfg.InputPath))
	w := deps.Progress

	var res Result

	text, err := docx.ExtractText(cfg.InputPath)
	if err != nil {
		return res, &StageError{Stage: StageRead, Err: err}
	}
	meta, err := docx.ReadMetadata(cfg.InputPath)
	if err != nil {
		log.Warn("reading document properties", zap.Error(err))
	}
	fmt.Fprintf(w, "read     %s (%d chars)\n", cfg.InputPath, len([]rune(text)))

	if cfg.Render.Enabled && deps.Renderer != nil {
		pdfPath, err := render.ToPDF(ctx, deps.Renderer, cfg.InputPath, cfg.Render.OutputPath)
		switch {
		case err != nil && cfg.Render.Required:
			return res, &StageError{Stage: StageRender, Err: err}
		case err != nil:
			log.Warn("pdf rendering failed, continuing without pdf", zap.Error(err))
			fmt.Fprintf(w, "warning: pdf rendering failed: %v\n", err)
			res.RenderErr = err
		default:
			res.PDFPath = pdfPath
			fmt.Fprintf(w, "rendered %s\n", pdfPath)
		}
	}

	start := deps.Now()
	ents, err := extract.ExtractEntities(ctx, deps.Backend, text, cfg.Extraction, extract.WithLogger(log))
	if err != nil {
		return res, &StageError{Stage: StageExtract, Err: err}
	}
	log.Info("extracted entities",
		zap.Int("kpis", len(ents.KPIs)),
		zap.Int("dates", len(ents.Dates)),
		zap.Int("organizations", len(ents.Organizations)),
		zap.Duration("elapsed", deps.Now().Sub(start)),
	)

	o := output.Build(cfg.InputPath, meta, ents, deps.Now(), deps.NewRunID())
	o.Document.Backend = deps.BackendName
	o.Document.PDFPath = res.PDFPath
	res.Output = o
	fmt.Fprintf(w, "extracted %d kpis, %d dates, %d organizations\n",
		o.Statistics.KPICount, o.Statistics.DateCount, o.Statistics.OrgCount)

	if err := output.Validate(o); err != nil {
		return res, &StageError{Stage: StageValidate, Err: err}
	}

	if cfg.Output.Path != "" {
		if err := output.Write(cfg.Output.Path, o, cfg.Output.Format); err != nil {
			return res, &StageError{Stage: StageWrite, Err: err}
		}
		res.OutputPath = cfg.Output.Path
		fmt.Fprintf(w, "wrote    %s\n", cfg.Output.Path)
	}

	if cfg.Output.XLSXPath != "" {
		if err := output.ExportXLSX(cfg.Output.XLSXPath, o); err != nil {
			return res, &StageError{Stage: StageExport, Err: err}
		}
		res.XLSXPath = cfg.Output.XLSXPath
		fmt.Fprintf(w, "wrote    %s\n", cfg.Output.XLSXPath)
	}

	if deps.History != nil {
		if err := deps.History.SaveRun(ctx, o); err != nil {
			return res, &StageError{Stage: StageHistory, Err: err}
		}
		log.Debug("saved run", zap.String("run_id", o.Document.RunID))
	}

	return res, nil
}
