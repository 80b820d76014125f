// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/report-extract/pkg/types"
)

// Sheet names used by ExportXLSX.
const (
	SheetSummary       = "Summary"
	SheetKPIs          = "KPIs"
	SheetDates         = "Dates"
	SheetOrganizations = "Organizations"
)

// ExportXLSX writes a workbook with a summary sheet and one sheet per
// entity kind.
func ExportXLSX(path string, o types.Output) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}

	summary := [][]any{
		{"Field", "Value"},
		{"Filename", o.Document.Filename},
		{"Extracted", o.Document.ExtractionTimestamp},
		{"Run ID", o.Document.RunID},
		{"Backend", o.Document.Backend},
		{"Total entities", o.Statistics.TotalEntities},
		{"KPIs", o.Statistics.KPICount},
		{"Dates", o.Statistics.DateCount},
		{"Organizations", o.Statistics.OrgCount},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}

	kpis := [][]any{{"Name", "Value", "Unit", "Confidence", "Context"}}
	for _, k := range o.Entities.KPIs {
		kpis = append(kpis, []any{k.Name, k.Value, k.Unit, k.Confidence, k.Context})
	}
	dates := [][]any{{"Text", "Type", "Normalized", "Confidence"}}
	for _, d := range o.Entities.Dates {
		dates = append(dates, []any{d.Text, string(d.Type), d.Normalized, d.Confidence})
	}
	orgs := [][]any{{"Name", "Role", "Confidence"}}
	for _, org := range o.Entities.Organizations {
		orgs = append(orgs, []any{org.Name, org.Role, org.Confidence})
	}

	for _, s := range []struct {
		name string
		rows [][]any
	}{
		{SheetKPIs, kpis},
		{SheetDates, dates},
		{SheetOrganizations, orgs},
	} {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", s.name, err)
		}
		if err := writeRows(f, s.name, s.rows); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(SheetSummary, "A", "A", 18)
	_ = f.SetColWidth(SheetSummary, "B", "B", 40)
	_ = f.SetColWidth(SheetKPIs, "A", "A", 28)
	_ = f.SetColWidth(SheetKPIs, "E", "E", 60)
	_ = f.SetColWidth(SheetDates, "A", "A", 24)
	_ = f.SetColWidth(SheetOrganizations, "A", "A", 28)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("setting %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
