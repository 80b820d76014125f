// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docx

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

const corePart = "docProps/core.xml"

// Metadata holds the core properties of a document.
type Metadata struct {
	Author   string
	Title    string
	Subject  string
	Created  *time.Time
	Modified *time.Time
}

// IsZero reports whether no property is set.
func (m Metadata) IsZero() bool {
	return m.Author == "" && m.Title == "" && m.Subject == "" && m.Created == nil && m.Modified == nil
}

type coreProperties struct {
	Title    string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Subject  string `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Creator  string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Created  string `xml:"http://purl.org/dc/terms/ created"`
	Modified string `xml:"http://purl.org/dc/terms/ modified"`
}

// ReadMetadata returns the core properties stored in docProps/core.xml.
// A document without a core properties part yields an empty Metadata.
func ReadMetadata(path string) (Metadata, error) {
	pkg, err := open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer pkg.Close()

	part := findPart(pkg.zr, corePart)
	if part == nil {
		return Metadata{}, nil
	}

	rc, err := part.Open()
	if err != nil {
		return Metadata{}, fmt.Errorf("opening %s: %w", corePart, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading %s: %w", corePart, err)
	}

	var props coreProperties
	if err := xml.Unmarshal(data, &props); err != nil {
		return Metadata{}, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, corePart, err)
	}

	return Metadata{
		Author:   strings.TrimSpace(props.Creator),
		Title:    strings.TrimSpace(props.Title),
		Subject:  strings.TrimSpace(props.Subject),
		Created:  parseW3CDTF(props.Created),
		Modified: parseW3CDTF(props.Modified),
	}, nil
}

// parseW3CDTF parses the timestamp profile used by OPC core properties.
// Unparseable values yield nil.
func parseW3CDTF(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
