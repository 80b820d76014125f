// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/report-extract/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored extraction runs",
	Long: `History reads the run history database written by extract and batch
when --history-dir is set. Use --run to print the entities of one run or
--kpi to follow one metric across runs.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("history-dir", "history", "directory of the run history database")
	historyCmd.Flags().Int("limit", 20, "maximum runs listed (0 = all)")
	historyCmd.Flags().String("run", "", "print the entities of this run ID")
	historyCmd.Flags().String("kpi", "", "print the values of KPIs whose name contains this text")
	historyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := store.Open(viper.GetString("history-dir"))
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		e, err := st.RunEntities(ctx, runID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	}

	if name, _ := cmd.Flags().GetString("kpi"); name != "" {
		points, err := st.KPIHistory(ctx, name)
		if err != nil {
			return err
		}
		if jsonOutput {
			return encodeJSON(points)
		}
		if len(points) == 0 {
			fmt.Println("No values found.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "%-20s  %-30s  %-24s  %s\n", "Extracted", "Document", "KPI", "Value")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
		for _, p := range points {
			fmt.Fprintf(os.Stdout, "%-20s  %-30s  %-24s  %g %s\n",
				p.ExtractedAt, truncate(p.Filename, 30), truncate(p.Name, 24), p.Value, p.Unit)
		}
		return nil
	}

	runs, err := st.ListRuns(ctx, viper.GetInt("limit"))
	if err != nil {
		return err
	}
	if jsonOutput {
		return encodeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-30s  %-8s  %4s  %5s  %4s\n",
		"Run", "Extracted", "Document", "Backend", "KPIs", "Dates", "Orgs")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-30s  %-8s  %4d  %5d  %4d\n",
			r.ID, r.ExtractedAt, truncate(r.Filename, 30), r.Backend,
			r.Statistics.KPICount, r.Statistics.DateCount, r.Statistics.OrgCount)
	}
	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
