// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/report-extract/internal/docx"
	"github.com/pdiddy/report-extract/internal/docx/docxtest"
	"github.com/pdiddy/report-extract/internal/output"
	"github.com/pdiddy/report-extract/pkg/types"
)

func TestOutputPathFor(t *testing.T) {
	tests := []struct {
		name                string
		base, input, outDir string
		want                string
	}{
		{"next to input", "in", "in/w45.docx", "", "in/w45.entities.json"},
		{"flat out dir", "in", "in/w45.docx", "out", "out/w45.entities.json"},
		{"nested keeps layout", "in", "in/2025/nov/w45.docx", "out", "out/2025/nov/w45.entities.json"},
		{"outside base", "in", "other/w45.DOCX", "out", "out/w45.entities.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputPathFor(tt.base, filepath.FromSlash(tt.input), tt.outDir)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestMatch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.docx", "sub/b.DOCX", "sub/deeper/c.docx", "notes.txt", "~$a.docx"} {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	base, paths, err := Match(filepath.Join(dir, "**", "*"))
	require.NoError(t, err)
	assert.Equal(t, dir, base)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.docx"),
		filepath.Join(dir, "sub", "b.DOCX"),
		filepath.Join(dir, "sub", "deeper", "c.docx"),
	}, paths)
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "reports")
	docxtest.Write(t, filepath.Join(in, "week45.docx"), docxtest.GearheadReport())
	docxtest.Write(t, filepath.Join(in, "archive", "week44.docx"), docxtest.Doc{Body: []docxtest.Block{
		docxtest.P("Gearhead Cycles weekly report, Week 44 of 2025."),
		docxtest.P("OEE reached 76.2% for the week."),
		docxtest.P("On-Time Delivery improved to 93.1%."),
	}})
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.docx"), []byte("not a zip"), 0o644))

	var progress bytes.Buffer
	deps := testDeps(&progress)
	history := &fakeHistory{}
	deps.History = history

	outDir := filepath.Join(dir, "out")
	cfg := types.PipelineConfig{
		Batch:  types.BatchConfig{Workers: 2, OutputDir: outDir},
		Output: types.OutputConfig{XLSXPath: filepath.Join(dir, "ignored.xlsx")},
	}

	summary, err := RunBatch(context.Background(), deps, cfg, filepath.Join(in, "**", "*.docx"))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Total())
	require.Len(t, summary.Items, 3)

	for _, it := range summary.Items {
		if filepath.Base(it.Input) == "broken.docx" {
			assert.ErrorIs(t, it.Err, docx.ErrInvalidDocument)
			continue
		}
		require.NoError(t, it.Err, it.Input)
		assert.FileExists(t, it.OutputPath)
	}

	o, err := output.Read(filepath.Join(outDir, "archive", "week44.entities.json"))
	require.NoError(t, err)
	assert.Equal(t, "week44.docx", o.Document.Filename)
	assert.GreaterOrEqual(t, o.Statistics.KPICount, 2)

	assert.FileExists(t, filepath.Join(outDir, "week45.entities.json"))
	assert.NoFileExists(t, cfg.Output.XLSXPath)
	assert.Len(t, history.runs, 2)
	assert.Contains(t, progress.String(), "processed: 2, failed: 1")
}

func TestRunBatch_NoMatches(t *testing.T) {
	_, err := RunBatch(context.Background(), testDeps(&bytes.Buffer{}), types.PipelineConfig{}, filepath.Join(t.TempDir(), "*.docx"))
	assert.Error(t, err)
}

func TestRunBatch_Cancelled(t *testing.T) {
	dir := t.TempDir()
	docxtest.Write(t, filepath.Join(dir, "a.docx"), docxtest.GearheadReport())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := RunBatch(ctx, testDeps(&bytes.Buffer{}), types.PipelineConfig{}, filepath.Join(dir, "*.docx"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Failed)
}
