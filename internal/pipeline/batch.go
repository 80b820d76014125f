// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/report-extract/internal/docx"
	"github.com/pdiddy/report-extract/pkg/types"
)

const (
	// DefaultWorkers is the batch concurrency when none is configured.
	DefaultWorkers = 4

	batchSuffix = ".entities.json"
)

// BatchItem is the outcome for one input document.
type BatchItem struct {
	Input      string
	OutputPath string
	Err        error
}

// BatchSummary holds counts from a batch run.
type BatchSummary struct {
	Processed int
	Failed    int
	Items     []BatchItem
}

// Total returns the number of documents attempted.
func (s BatchSummary) Total() int {
	return s.Processed + s.Failed
}

// OutputPathFor returns the batch output file for input: <stem>.entities.json
// under outDir, keeping input's directory relative to base. An empty
// outDir places the file next to the input.
func OutputPathFor(base, input, outDir string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if outDir == "" {
		return filepath.Join(filepath.Dir(input), stem+batchSuffix)
	}
	rel, err := filepath.Rel(base, filepath.Dir(input))
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = ""
	}
	return filepath.Join(outDir, rel, stem+batchSuffix)
}

// Match returns the .docx files matching pattern, sorted. Patterns use
// doublestar syntax ("reports/**/*.docx").
func Match(pattern string) (base string, paths []string, err error) {
	base, rel := doublestar.SplitPattern(filepath.ToSlash(pattern))
	matches, err := doublestar.Glob(os.DirFS(base), rel, doublestar.WithFilesOnly())
	if err != nil {
		return "", nil, fmt.Errorf("matching %s: %w", pattern, err)
	}
	for _, m := range matches {
		if strings.EqualFold(filepath.Ext(m), docx.Extension) && !strings.HasPrefix(filepath.Base(m), "~$") {
			paths = append(paths, filepath.Join(base, filepath.FromSlash(m)))
		}
	}
	sort.Strings(paths)
	return filepath.FromSlash(base), paths, nil
}

// RunBatch runs the pipeline over every document matching pattern using
// cfg.Batch.Workers concurrent runs. A failed document is counted and
// does not stop the others.
func RunBatch(ctx context.Context, deps Deps, cfg types.PipelineConfig, pattern string) (BatchSummary, error) {
	deps = deps.withDefaults()

	base, inputs, err := Match(pattern)
	if err != nil {
		return BatchSummary{}, err
	}
	if len(inputs) == 0 {
		return BatchSummary{}, fmt.Errorf("no .docx files match %s", pattern)
	}

	workers := cfg.Batch.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("create batch pool: %w", err)
	}
	defer pool.Release()

	progress := &lockedWriter{w: deps.Progress}
	items := make([]BatchItem, len(inputs))
	var wg sync.WaitGroup

	for i, input := range inputs {
		fileCfg := cfg
		fileCfg.InputPath = input
		fileCfg.Output.Path = OutputPathFor(base, input, cfg.Batch.OutputDir)
		fileCfg.Output.Format = types.OutputJSON
		fileCfg.Output.XLSXPath = ""
		fileCfg.Render.OutputPath = ""
		items[i] = BatchItem{Input: input, OutputPath: fileCfg.Output.Path}

		fileDeps := deps
		fileDeps.Progress = io.Discard
		fileDeps.Log = deps.Log.With(zap.Int("doc", i+1))

		wg.Add(1)
		idx := i
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				items[idx].Err = err
				return
			}
			_, items[idx].Err = Run(ctx, fileDeps, fileCfg)
			if items[idx].Err != nil {
				fmt.Fprintf(progress, "failed  %s: %v\n", input, items[idx].Err)
			} else {
				fmt.Fprintf(progress, "done    %s -> %s\n", input, fileCfg.Output.Path)
			}
		})
		if submitErr != nil {
			wg.Done()
			items[idx].Err = fmt.Errorf("submitting %s: %w", input, submitErr)
		}
	}
	wg.Wait()

	summary := BatchSummary{Items: items}
	for _, it := range items {
		if it.Err != nil {
			summary.Failed++
		} else {
			summary.Processed++
		}
	}
	fmt.Fprintf(progress, "\nprocessed: %d, failed: %d\n", summary.Processed, summary.Failed)

	return summary, ctx.Err()
}

// lockedWriter serializes writes from concurrent runs.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
