// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"text/template"
)

// systemPrompt is sent as the system message by backends that support one.
const systemPrompt = "You extract structured business entities from operational reports. You reply with a single JSON object and nothing else."

// extractionPromptTmpl is the user prompt sent for each chunk of report text.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`Analyze the following excerpt of a business report and extract three kinds of entities.

1. kpis: key performance indicators, i.e. named business metrics with a numeric value.
   - name: the metric label as written, including any abbreviation (e.g. "Overall Equipment Effectiveness (OEE)")
   - value: the numeric value as a JSON number (78.5, not "78.5%"); strip thousands separators
   - unit: the unit of the value ("%", "units", "USD", "hours"); use "count" for plain counts
   - context: the sentence or table row the value comes from
   - confidence: a float between 0.0 and 1.0
   Report the current value of each metric once. Targets and prior-period values are context, not separate KPIs.

2. dates: every date or time reference.
   - text: the reference exactly as written (e.g. "Week 45", "November 20, 2025", "Q3 2025")
   - type: one of "reporting_period", "deadline", "event", "other"
   - normalized: ISO 8601 form when it resolves to a calendar date or ISO week (e.g. "2025-11-20", "2025-W45"), otherwise ""
   - confidence: a float between 0.0 and 1.0

3. organizations: companies, suppliers, customers, agencies and other named bodies.
   - name: the organization name as written
   - role: how it relates to the report ("company", "supplier", "customer", "partner", "other")
   - confidence: a float between 0.0 and 1.0

Respond with a JSON object with exactly the keys "kpis", "dates" and "organizations", each an array (empty when nothing is found). Do not include any text outside the JSON object.

Example response:
{"kpis": [{"name": "On-Time Delivery (OTD)", "value": 94.2, "unit": "%", "context": "On-Time Delivery (OTD) improved to 94.2%", "confidence": 0.95}], "dates": [{"text": "Week 45", "type": "reporting_period", "normalized": "2025-W45", "confidence": 0.9}], "organizations": [{"name": "Gearhead Cycles", "role": "company", "confidence": 0.95}]}

Report excerpt:
{{.Chunk}}
`))

// renderPrompt executes the extraction prompt template with the given chunk.
func renderPrompt(chunk string) (string, error) {
	var buf bytes.Buffer
	if err := extractionPromptTmpl.Execute(&buf, struct{ Chunk string }{Chunk: chunk}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
