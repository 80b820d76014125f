// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/report-extract/pkg/types"
)

// ErrAcceptance reports an output document of the Gearhead weekly report
// that is missing an expected entity.
var ErrAcceptance = errors.New("acceptance check failed")

// OEE values accepted for the Gearhead weekly report.
const (
	oeeMin = 75.0
	oeeMax = 82.0
)

// CheckAcceptance verifies the content expected from a run over the
// Gearhead weekly report. All failed properties are reported together.
func CheckAcceptance(o types.Output) error {
	var problems []error
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if err := Validate(o); err != nil {
		fail("%v", err)
	}

	kpis := o.Entities.KPIs
	if len(kpis) < 3 {
		fail("want at least 3 KPIs, got %d", len(kpis))
	}
	for i, k := range kpis {
		if k.Name == "" || k.Unit == "" {
			fail("kpi %d: name and unit are required", i)
		}
		if k.Confidence < 0 || k.Confidence > 1 {
			fail("kpi %d: confidence %v outside [0,1]", i, k.Confidence)
		}
	}

	oee, ok := findName(kpis, func(k types.KPI) string { return k.Name }, "oee")
	switch {
	case !ok:
		fail("no OEE KPI")
	case oee.Value < oeeMin || oee.Value > oeeMax:
		fail("OEE value %v outside [%v,%v]", oee.Value, oeeMin, oeeMax)
	}

	if _, ok := findName(kpis, func(k types.KPI) string { return k.Name }, "delivery", "otd"); !ok {
		fail("no on-time delivery KPI")
	}

	if len(o.Entities.Dates) < 2 {
		fail("want at least 2 dates, got %d", len(o.Entities.Dates))
	}
	if _, ok := findName(o.Entities.Dates, func(d types.DateRef) string { return d.Text }, "week", "45"); !ok {
		fail("no reporting week date")
	}

	if _, ok := findName(o.Entities.Organizations, func(org types.Organization) string { return org.Name }, "gearhead"); !ok {
		fail("no Gearhead organization")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrAcceptance, errors.Join(problems...))
}

// findName returns the first item whose name contains any of substrs,
// compared case-insensitively.
func findName[T any](items []T, name func(T) string, substrs ...string) (T, bool) {
	for _, item := range items {
		n := strings.ToLower(name(item))
		for _, s := range substrs {
			if strings.Contains(n, s) {
				return item, true
			}
		}
	}
	var zero T
	return zero, false
}
