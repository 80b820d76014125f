// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pdiddy/report-extract/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testOutput(runID, ts string, oee float64) types.Output {
	e := types.Entities{
		KPIs: []types.KPI{
			{Name: "OEE", Value: oee, Unit: "%", Context: "OEE reached 78.5%.", Confidence: 0.9},
			{Name: "On-Time Delivery", Value: 94.2, Unit: "%", Confidence: 0.8},
		},
		Dates: []types.DateRef{
			{Text: "Week 45", Type: types.DateReportingPeriod, Normalized: "2025-W45", Confidence: 0.9},
		},
		Organizations: []types.Organization{
			{Name: "Gearhead Cycles", Role: "company", Confidence: 0.95},
		},
	}
	return types.Output{
		Document: types.DocumentInfo{
			Filename:            "gearhead_weekly_report.docx",
			ExtractionTimestamp: ts,
			RunID:               runID,
			Backend:             "rules",
			Metadata:            &types.DocumentMetadata{Title: "Weekly"},
		},
		Entities: e,
		Statistics: types.Statistics{
			TotalEntities: e.Total(),
			KPICount:      len(e.KPIs),
			DateCount:     len(e.Dates),
			OrgCount:      len(e.Organizations),
		},
	}
}

func TestSaveRunAndEntities(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	o := testOutput("run-1", "2025-11-10T08:00:00Z", 78.5)
	if err := s.SaveRun(ctx, o); err != nil {
		t.Fatal(err)
	}

	got, err := s.RunEntities(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.KPIs) != 2 || len(got.Dates) != 1 || len(got.Organizations) != 1 {
		t.Fatalf("entities = %+v", got)
	}
	if got.KPIs[0] != o.Entities.KPIs[0] {
		t.Errorf("kpi[0] = %+v, want %+v", got.KPIs[0], o.Entities.KPIs[0])
	}
	if got.Dates[0] != o.Entities.Dates[0] {
		t.Errorf("date[0] = %+v, want %+v", got.Dates[0], o.Entities.Dates[0])
	}
	if got.Organizations[0] != o.Entities.Organizations[0] {
		t.Errorf("org[0] = %+v, want %+v", got.Organizations[0], o.Entities.Organizations[0])
	}
}

func TestSaveRun_ReplacesSameID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, testOutput("run-1", "2025-11-10T08:00:00Z", 78.5)); err != nil {
		t.Fatal(err)
	}
	o := testOutput("run-1", "2025-11-10T09:00:00Z", 80)
	o.Entities.KPIs = o.Entities.KPIs[:1]
	o.Statistics.KPICount = 1
	o.Statistics.TotalEntities = 3
	if err := s.SaveRun(ctx, o); err != nil {
		t.Fatal(err)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].ExtractedAt != "2025-11-10T09:00:00Z" || runs[0].Statistics.KPICount != 1 {
		t.Errorf("run = %+v", runs[0])
	}

	e, err := s.RunEntities(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.KPIs) != 1 || e.KPIs[0].Value != 80 {
		t.Errorf("kpis = %+v, want one OEE of 80", e.KPIs)
	}
}

func TestSaveRun_RequiresID(t *testing.T) {
	s := testStore(t)
	if err := s.SaveRun(context.Background(), testOutput("", "2025-11-10T08:00:00Z", 1)); err == nil {
		t.Fatal("expected error for missing run ID")
	}
}

func TestListRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i, ts := range []string{"2025-11-03T08:00:00Z", "2025-11-17T08:00:00Z", "2025-11-10T08:00:00Z"} {
		if err := s.SaveRun(ctx, testOutput([]string{"a", "c", "b"}[i], ts, 78)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"c", "b", "a"}},
		{"limited", 2, []string{"c", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			var ids []string
			for _, r := range runs {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ids = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}

	runs, _ := s.ListRuns(ctx, 1)
	if runs[0].Backend != "rules" || runs[0].Statistics.TotalEntities != 4 {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestRunEntities_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.RunEntities(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestKPIHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	weeks := []struct {
		id, ts string
		oee    float64
	}{
		{"w46", "2025-11-17T08:00:00Z", 80.1},
		{"w45", "2025-11-10T08:00:00Z", 78.5},
	}
	for _, w := range weeks {
		if err := s.SaveRun(ctx, testOutput(w.id, w.ts, w.oee)); err != nil {
			t.Fatal(err)
		}
	}

	points, err := s.KPIHistory(ctx, "oee")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %+v", points)
	}
	if points[0].RunID != "w45" || points[0].Value != 78.5 || points[1].Value != 80.1 {
		t.Errorf("points = %+v, want w45 then w46", points)
	}

	points, err = s.KPIHistory(ctx, "100%")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 0 {
		t.Errorf("wildcards in name must be literal, got %+v", points)
	}
}

func TestDeleteRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, testOutput("run-1", "2025-11-10T08:00:00Z", 78.5)); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunEntities(ctx, "run-1"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
	if err := s.DeleteRun(ctx, "run-1"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second delete err = %v, want ErrRunNotFound", err)
	}

	points, err := s.KPIHistory(ctx, "oee")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 0 {
		t.Errorf("entities of deleted run remain: %+v", points)
	}
}
