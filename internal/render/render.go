// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render produces a PDF copy of a .docx report and reads the text
// layer of PDF files back. Rendering backends implement Renderer.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/report-extract/internal/docx"
)

// ErrNotFound reports a missing source file. It is the same sentinel the
// docx reader uses so callers can test for one value.
var ErrNotFound = docx.ErrNotFound

// ErrConversionFailed wraps any failure of a rendering backend.
var ErrConversionFailed = errors.New("pdf conversion failed")

// Renderer writes a PDF rendering of the document at docxPath to pdfPath.
type Renderer interface {
	Render(ctx context.Context, docxPath, pdfPath string) error
}

// DefaultOutputPath returns docxPath with its extension replaced by ".pdf".
func DefaultOutputPath(docxPath string) string {
	return strings.TrimSuffix(docxPath, filepath.Ext(docxPath)) + ".pdf"
}

// ToPDF renders docxPath to outPath with r and returns the path written.
// An empty outPath selects DefaultOutputPath. The call returns once the
// file is fully written. A missing source returns ErrNotFound; every other
// failure, an unsupported source included, wraps ErrConversionFailed.
func ToPDF(ctx context.Context, r Renderer, docxPath, outPath string) (string, error) {
	if err := docx.Check(docxPath); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if outPath == "" {
		outPath = DefaultOutputPath(docxPath)
	}

	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("%w: creating %s: %w", ErrConversionFailed, dir, err)
		}
	}

	if err := r.Render(ctx, docxPath, outPath); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrConversionFailed, docxPath, err)
	}
	return outPath, nil
}
