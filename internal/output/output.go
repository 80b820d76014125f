// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package output assembles, validates, and writes the result document of
// an extraction run.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/report-extract/internal/docx"
	"github.com/pdiddy/report-extract/pkg/types"
)

// Build assembles the output document. Lists are never nil and the
// statistics always agree with the list lengths.
func Build(filename string, meta docx.Metadata, e types.Entities, now time.Time, runID string) types.Output {
	e = e.Normalize()
	return types.Output{
		Document: types.DocumentInfo{
			Filename:            filepath.Base(filename),
			ExtractionTimestamp: now.UTC().Format(time.RFC3339),
			RunID:               runID,
			Metadata:            documentMetadata(meta),
		},
		Entities:   e,
		Statistics: Stats(e),
	}
}

// Stats counts the entities in e.
func Stats(e types.Entities) types.Statistics {
	return types.Statistics{
		TotalEntities: e.Total(),
		KPICount:      len(e.KPIs),
		DateCount:     len(e.Dates),
		OrgCount:      len(e.Organizations),
	}
}

func documentMetadata(m docx.Metadata) *types.DocumentMetadata {
	if m.IsZero() {
		return nil
	}
	dm := &types.DocumentMetadata{Author: m.Author, Title: m.Title, Subject: m.Subject}
	if m.Created != nil {
		dm.Created = m.Created.UTC().Format(time.RFC3339)
	}
	if m.Modified != nil {
		dm.Modified = m.Modified.UTC().Format(time.RFC3339)
	}
	return dm
}

// FormatFor returns the format implied by the path extension: yaml for
// .yaml and .yml, json otherwise.
func FormatFor(path string) types.OutputFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return types.OutputYAML
	}
	return types.OutputJSON
}

// Marshal serializes o. JSON uses a two-space indent.
func Marshal(o types.Output, format types.OutputFormat) ([]byte, error) {
	switch format {
	case types.OutputJSON, "":
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(o); err != nil {
			return nil, fmt.Errorf("marshaling output: %w", err)
		}
		return buf.Bytes(), nil
	case types.OutputYAML:
		data, err := yaml.Marshal(&o)
		if err != nil {
			return nil, fmt.Errorf("marshaling output: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// Write serializes o to path, creating the parent directory. An empty
// format is inferred from the extension.
func Write(path string, o types.Output, format types.OutputFormat) error {
	if format == "" {
		format = FormatFor(path)
	}
	data, err := Marshal(o, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Read loads an output document written by Write.
func Read(path string) (types.Output, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Output{}, err
	}

	var o types.Output
	if FormatFor(path) == types.OutputYAML {
		err = yaml.Unmarshal(data, &o)
	} else {
		err = json.Unmarshal(data, &o)
	}
	if err != nil {
		return types.Output{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	o.Entities = o.Entities.Normalize()
	return o, nil
}
