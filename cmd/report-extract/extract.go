// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/report-extract/internal/output"
	"github.com/pdiddy/report-extract/internal/pipeline"
	"github.com/pdiddy/report-extract/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract [report.docx]",
	Short: "Extract KPIs, dates, and organizations from a DOCX report",
	Long: `Extract reads the report text (body paragraphs and table rows), renders a
PDF copy as a side effect, sends the text to the extraction backend, and
writes a JSON document with the entities and their counts.

A failed PDF rendering is reported and the run continues unless
--require-pdf is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("input", defaultInput, "DOCX report to process")
	extractCmd.Flags().String("output", defaultOutput, "output document path")
	extractCmd.Flags().String("format", "", "output format: json or yaml (default: from output extension)")
	extractCmd.Flags().String("xlsx", "", "also export the entities to this spreadsheet")
	extractCmd.Flags().Bool("check", false, "verify the weekly report acceptance properties after writing")
	addExtractionFlags(extractCmd)
	addRenderFlags(extractCmd, true)
	addHistoryFlag(extractCmd)

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	input := viper.GetString("input")
	if len(args) == 1 {
		input = args[0]
	}

	cfg := types.PipelineConfig{
		InputPath:  input,
		Render:     renderConfig(),
		Extraction: extractionConfig(),
		Output: types.OutputConfig{
			Path:     viper.GetString("output"),
			Format:   types.OutputFormat(viper.GetString("format")),
			XLSXPath: viper.GetString("xlsx"),
		},
		Store: types.StoreConfig{Dir: viper.GetString("history-dir")},
	}

	ctx := cmd.Context()
	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	deps.Progress = os.Stdout

	res, err := pipeline.Run(ctx, deps, cfg)
	if err != nil {
		return err
	}

	st := res.Output.Statistics
	fmt.Fprintf(os.Stdout, "\nrun %s: %d entities (kpis: %d, dates: %d, organizations: %d)\n",
		res.Output.Document.RunID, st.TotalEntities, st.KPICount, st.DateCount, st.OrgCount)

	if check, _ := cmd.Flags().GetBool("check"); check {
		if err := output.CheckAcceptance(res.Output); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "acceptance check passed")
	}
	return nil
}
