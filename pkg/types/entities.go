// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// KPI is a named business metric with a numeric value and unit.
type KPI struct {
	// Name is the metric label as it appears in the report (e.g. "OEE").
	Name string `json:"name" yaml:"name"`

	// Value is the numeric value of the metric.
	Value float64 `json:"value" yaml:"value"`

	// Unit is the measurement unit ("%", "units", "USD"). Dimensionless
	// counts use "count".
	Unit string `json:"unit" yaml:"unit"`

	// Context is the sentence or table row the metric was taken from.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`

	// Confidence is a float between 0.0 and 1.0 indicating extraction certainty.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// DateType categorizes a date reference.
type DateType string

const (
	DateReportingPeriod DateType = "reporting_period"
	DateDeadline        DateType = "deadline"
	DateEvent           DateType = "event"
	DateOther           DateType = "other"
)

// DateRef is a date or time reference found in the report.
type DateRef struct {
	// Text is the reference exactly as written (e.g. "Week 45", "November 14, 2025").
	Text string `json:"text" yaml:"text"`

	// Type categorizes the reference.
	Type DateType `json:"type,omitempty" yaml:"type,omitempty"`

	// Normalized is an ISO 8601 rendering when the reference resolves to a
	// calendar date or week (e.g. "2025-11-14", "2025-W45"). Empty otherwise.
	Normalized string `json:"normalized,omitempty" yaml:"normalized,omitempty"`

	// Confidence is a float between 0.0 and 1.0 indicating extraction certainty.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Organization is a company, supplier, customer, or other named body.
type Organization struct {
	Name string `json:"name" yaml:"name"`

	// Role describes how the organization relates to the report
	// (e.g. "company", "supplier", "customer"). Optional.
	Role string `json:"role,omitempty" yaml:"role,omitempty"`

	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Entities groups everything extracted from one document.
type Entities struct {
	KPIs          []KPI          `json:"kpis" yaml:"kpis"`
	Dates         []DateRef      `json:"dates" yaml:"dates"`
	Organizations []Organization `json:"organizations" yaml:"organizations"`
}

// Total returns the number of extracted entities across all kinds.
func (e Entities) Total() int {
	return len(e.KPIs) + len(e.Dates) + len(e.Organizations)
}

// Normalize replaces nil lists with empty ones so the serialized form
// always carries arrays.
func (e Entities) Normalize() Entities {
	if e.KPIs == nil {
		e.KPIs = []KPI{}
	}
	if e.Dates == nil {
		e.Dates = []DateRef{}
	}
	if e.Organizations == nil {
		e.Organizations = []Organization{}
	}
	return e
}

// DocumentMetadata holds the core properties of the source document.
type DocumentMetadata struct {
	Author   string `json:"author,omitempty" yaml:"author,omitempty"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Subject  string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Created  string `json:"created,omitempty" yaml:"created,omitempty"`
	Modified string `json:"modified,omitempty" yaml:"modified,omitempty"`
}

// DocumentInfo identifies the processed document and the run.
type DocumentInfo struct {
	Filename string `json:"filename" yaml:"filename"`

	// ExtractionTimestamp is the RFC 3339 time the extraction finished.
	ExtractionTimestamp string `json:"extraction_timestamp" yaml:"extraction_timestamp"`

	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`

	// Backend names the extraction backend that produced the entities.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// PDFPath is the rendered PDF copy, when one was produced.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`

	Metadata *DocumentMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Statistics summarizes entity counts. TotalEntities always equals
// KPICount + DateCount + OrgCount.
type Statistics struct {
	TotalEntities int `json:"total_entities" yaml:"total_entities"`
	KPICount      int `json:"kpi_count" yaml:"kpi_count"`
	DateCount     int `json:"date_count" yaml:"date_count"`
	OrgCount      int `json:"org_count" yaml:"org_count"`
}

// Output is the document written at the end of a run.
type Output struct {
	Document   DocumentInfo `json:"document" yaml:"document"`
	Entities   Entities     `json:"entities" yaml:"entities"`
	Statistics Statistics   `json:"statistics" yaml:"statistics"`
}
