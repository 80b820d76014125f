// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/report-extract/pkg/types"
)

// RulesBackend finds entities with regular expressions instead of a model.
// It needs no network access or credentials and is deterministic. It
// recognizes "<Label> reached 78.5%" style sentences and "Label | value"
// table rows as KPIs, week numbers and calendar dates, and capitalized
// names ending in a company suffix.
type RulesBackend struct{}

// Confidence assigned to rule matches.
const (
	rulesTableConfidence    = 0.9
	rulesSentenceConfidence = 0.8
	rulesDateConfidence     = 0.85
	rulesOrgConfidence      = 0.75
)

var (
	// kpiSentenceRe matches a capitalized label, a reporting verb, and a number.
	kpiSentenceRe = regexp.MustCompile(`([A-Z][A-Za-z0-9&/()' -]*?)\s+(?:reached|improved to|increased to|decreased to|rose to|fell to|dropped to|climbed to|grew to|stood at|came in at|averaged|totaled|totalled|hit|was|were)\s+(` + numberPattern + `)(\s*(?:%|percent\b|[A-Za-z]+\b))?`)

	// valueCellRe matches a table cell holding a number with an optional unit.
	valueCellRe = regexp.MustCompile(`^(` + numberPattern + `)\s*(%|[A-Za-z]+)?$`)

	weekRe      = regexp.MustCompile(`\b[Ww]eek\s+(\d{1,2})\b`)
	monthDateRe = regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2})(?:,\s*(\d{4}))?\b`)
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	quarterRe   = regexp.MustCompile(`\bQ([1-4])\s+(\d{4})\b`)
	yearRe      = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

	orgRe = regexp.MustCompile(`\b((?:[A-Z][A-Za-z0-9&'.-]*\s+){1,4}(?:Inc|Ltd|LLC|Corp|Corporation|Co|GmbH|AG|PLC|Cycles|Logistics|Industries|Group|Systems|Technologies|Manufacturing|Motors|Alloys|Partners|Holdings|Solutions))\b\.?`)
)

const numberPattern = `[-+]?[$€£]?\d[\d,]*(?:\.\d+)?`

// knownUnits maps unit words to their canonical form. Other words after a
// number are not units.
var knownUnits = map[string]string{
	"%": "%", "percent": "%",
	"unit": "units", "units": "units",
	"hour": "hours", "hours": "hours", "hrs": "hours",
	"day": "days", "days": "days",
	"minute": "minutes", "minutes": "minutes", "min": "minutes",
	"piece": "pieces", "pieces": "pieces", "pcs": "pieces",
	"frame": "frames", "frames": "frames",
	"order": "orders", "orders": "orders",
	"usd": "USD", "eur": "EUR", "gbp": "GBP",
	"k": "thousand", "m": "million",
}

var currencySymbols = map[byte]string{'$': "USD"}

// Extract implements Backend.
func (RulesBackend) Extract(ctx context.Context, chunk string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	var ents types.Entities
	for _, block := range strings.Split(chunk, chunkSeparator) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if strings.Contains(block, cellSeparator) {
			if k, ok := kpiFromRow(block); ok {
				ents.KPIs = append(ents.KPIs, k)
			}
		} else {
			ents.KPIs = append(ents.KPIs, kpisFromSentences(block)...)
		}
		ents.Dates = append(ents.Dates, datesIn(block)...)
		ents.Organizations = append(ents.Organizations, orgsIn(block)...)
	}
	return toResponse(ents)
}

const cellSeparator = " | "

// kpiFromRow reads "Label | value | ..." table rows.
func kpiFromRow(row string) (types.KPI, bool) {
	cells := strings.Split(row, cellSeparator)
	if len(cells) < 2 {
		return types.KPI{}, false
	}
	m := valueCellRe.FindStringSubmatch(strings.TrimSpace(cells[1]))
	if m == nil {
		return types.KPI{}, false
	}
	value, unit, ok := parseValue(m[1], m[2])
	if !ok {
		return types.KPI{}, false
	}
	return types.KPI{
		Name:       strings.TrimSpace(cells[0]),
		Value:      value,
		Unit:       unit,
		Context:    row,
		Confidence: rulesTableConfidence,
	}, true
}

func kpisFromSentences(block string) []types.KPI {
	var kpis []types.KPI
	for _, sentence := range splitSentences(block) {
		m := kpiSentenceRe.FindStringSubmatch(sentence)
		if m == nil {
			continue
		}
		value, unit, ok := parseValue(m[2], strings.TrimSpace(m[3]))
		if !ok {
			continue
		}
		kpis = append(kpis, types.KPI{
			Name:       strings.TrimSpace(m[1]),
			Value:      value,
			Unit:       unit,
			Context:    sentence,
			Confidence: rulesSentenceConfidence,
		})
	}
	return kpis
}

// splitSentences breaks text at ". " boundaries. Decimal points are not
// followed by a space and so are kept.
func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.SplitAfter(text, ". ") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseValue converts a matched number and unit word. A currency symbol
// sets the unit when no unit word follows.
func parseValue(num, unitWord string) (float64, string, bool) {
	unit := "count"
	if num != "" {
		sign := ""
		if num[0] == '-' || num[0] == '+' {
			sign, num = num[:1], num[1:]
		}
		if cur, ok := currencySymbols[num[0]]; ok {
			unit = cur
			num = num[1:]
		} else if strings.HasPrefix(num, "€") {
			unit, num = "EUR", strings.TrimPrefix(num, "€")
		} else if strings.HasPrefix(num, "£") {
			unit, num = "GBP", strings.TrimPrefix(num, "£")
		}
		num = sign + num
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, "", false
	}
	if u, ok := knownUnits[strings.ToLower(unitWord)]; ok {
		unit = u
	}
	return value, unit, true
}

func datesIn(block string) []types.DateRef {
	var dates []types.DateRef
	year := yearRe.FindString(block)

	for _, m := range weekRe.FindAllStringSubmatch(block, -1) {
		d := types.DateRef{Text: m[0], Type: dateTypeFor(block, m[0]), Confidence: rulesDateConfidence}
		if year != "" {
			if wk, err := strconv.Atoi(m[1]); err == nil && wk >= 1 && wk <= 53 {
				d.Normalized = fmt.Sprintf("%s-W%02d", year, wk)
			}
		}
		dates = append(dates, d)
	}

	for _, m := range monthDateRe.FindAllStringSubmatch(block, -1) {
		d := types.DateRef{Text: m[0], Type: dateTypeFor(block, m[0]), Confidence: rulesDateConfidence}
		if m[3] != "" {
			if t, err := time.Parse("January 2 2006", m[1]+" "+m[2]+" "+m[3]); err == nil {
				d.Normalized = t.Format(time.DateOnly)
			}
		}
		dates = append(dates, d)
	}

	for _, m := range isoDateRe.FindAllString(block, -1) {
		d := types.DateRef{Text: m, Type: dateTypeFor(block, m), Confidence: rulesDateConfidence}
		if t, err := time.Parse(time.DateOnly, m); err == nil {
			d.Normalized = t.Format(time.DateOnly)
		}
		dates = append(dates, d)
	}

	for _, m := range quarterRe.FindAllString(block, -1) {
		dates = append(dates, types.DateRef{Text: m, Type: dateTypeFor(block, m), Confidence: rulesDateConfidence})
	}
	return dates
}

// dateTypeFor classifies a date by the words just before it.
func dateTypeFor(block, match string) types.DateType {
	i := strings.Index(block, match)
	lead := strings.ToLower(block[max(0, i-40):max(0, i)])
	switch {
	case i == 0 && weekRe.MatchString(match):
		return types.DateReportingPeriod
	case strings.Contains(lead, "due") || strings.Contains(lead, "deadline") || strings.HasSuffix(strings.TrimSpace(lead), " by"):
		return types.DateDeadline
	case strings.Contains(lead, "scheduled") || strings.Contains(lead, "meeting") || strings.Contains(lead, "review") || strings.HasSuffix(strings.TrimSpace(lead), " on"):
		return types.DateEvent
	case strings.Contains(lead, "week ending") || strings.Contains(lead, "period"):
		return types.DateReportingPeriod
	}
	return types.DateOther
}

func orgsIn(block string) []types.Organization {
	var orgs []types.Organization
	for _, idx := range orgRe.FindAllStringSubmatchIndex(block, -1) {
		name := strings.TrimSpace(block[idx[2]:idx[3]])
		lead := strings.ToLower(block[max(0, idx[2]-30):idx[2]])
		role := ""
		switch {
		case strings.Contains(lead, "supplier") || strings.Contains(lead, "vendor"):
			role = "supplier"
		case strings.Contains(lead, "customer") || strings.Contains(lead, "client"):
			role = "customer"
		case strings.Contains(lead, "partner") || strings.Contains(lead, "with"):
			role = "partner"
		}
		orgs = append(orgs, types.Organization{Name: name, Role: role, Confidence: rulesOrgConfidence})
	}
	return orgs
}

// toResponse encodes typed entities as a Response so they pass through the
// same validation as model replies.
func toResponse(e types.Entities) (Response, error) {
	var resp Response
	for _, k := range e.KPIs {
		raw, err := json.Marshal(k)
		if err != nil {
			return Response{}, err
		}
		resp.KPIs = append(resp.KPIs, raw)
	}
	for _, d := range e.Dates {
		raw, err := json.Marshal(d)
		if err != nil {
			return Response{}, err
		}
		resp.Dates = append(resp.Dates, raw)
	}
	for _, o := range e.Organizations {
		raw, err := json.Marshal(o)
		if err != nil {
			return Response{}, err
		}
		resp.Organizations = append(resp.Organizations, raw)
	}
	return resp, nil
}
