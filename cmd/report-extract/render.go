// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/report-extract/internal/render"
)

var renderCmd = &cobra.Command{
	Use:   "render [report.docx]",
	Short: "Render a PDF copy of a DOCX report",
	Long: `Render writes a PDF copy of the report. The textbox renderer places the
first --max-chars characters of the paragraph text on one A4 page; the
libreoffice renderer converts the full document in a container.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var pdftextCmd = &cobra.Command{
	Use:   "pdftext <file.pdf>",
	Short: "Print the plain text of a PDF, page by page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := render.ExtractText(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, text)
		return nil
	},
}

func init() {
	renderCmd.Flags().String("input", defaultInput, "DOCX report to render")
	addRenderFlags(renderCmd, true)

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(pdftextCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	input := viper.GetString("input")
	if len(args) == 1 {
		input = args[0]
	}

	cfg := renderConfig()
	r, err := newRenderer(cmd.Context(), cfg, viper.GetString("renderer-image"))
	if err != nil {
		return err
	}

	out, err := render.ToPDF(cmd.Context(), r, input, cfg.OutputPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "rendered %s\n", out)
	return nil
}
