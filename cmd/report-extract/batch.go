// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/report-extract/internal/pipeline"
	"github.com/pdiddy/report-extract/pkg/types"
)

var batchCmd = &cobra.Command{
	Use:   "batch <pattern>",
	Short: "Extract entities from every DOCX report matching a glob",
	Long: `Batch runs extract over every .docx file matching the pattern
("reports/**/*.docx") with a bounded number of concurrent runs. Each input
produces <stem>.entities.json, under --out-dir when set or next to the
input otherwise. A failed document does not stop the others.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().String("out-dir", "", "directory for output documents (default: next to each input)")
	batchCmd.Flags().Int("workers", pipeline.DefaultWorkers, "documents processed concurrently")
	addExtractionFlags(batchCmd)
	addRenderFlags(batchCmd, false)
	addHistoryFlag(batchCmd)

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := types.PipelineConfig{
		Render:     renderConfig(),
		Extraction: extractionConfig(),
		Store:      types.StoreConfig{Dir: viper.GetString("history-dir")},
		Batch: types.BatchConfig{
			Workers:   viper.GetInt("workers"),
			OutputDir: viper.GetString("out-dir"),
		},
	}

	ctx := cmd.Context()
	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	deps.Progress = os.Stdout

	summary, err := pipeline.RunBatch(ctx, deps, cfg, args[0])
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed", summary.Failed, summary.Total())
	}
	return nil
}
