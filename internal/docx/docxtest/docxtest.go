// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docxtest builds small .docx packages for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// Block is one body element: a paragraph, a hyperlink paragraph, a table,
// or raw WordprocessingML.
type Block struct {
	Paragraph string
	LinkText  string
	Table     [][]string
	XML       string
}

// P returns a paragraph block.
func P(text string) Block { return Block{Paragraph: text} }

// Link returns a paragraph whose text is prefix followed by a hyperlink run.
func Link(prefix, linkText string) Block { return Block{Paragraph: prefix, LinkText: linkText} }

// Raw returns a block written verbatim into w:body. The w and r prefixes
// are declared on the document element.
func Raw(inner string) Block { return Block{XML: inner} }

// T returns a table block. A cell containing "\n" becomes several paragraphs.
func T(rows ...[]string) Block { return Block{Table: rows} }

// Core holds the docProps/core.xml values. A nil *Core omits the part.
type Core struct {
	Title    string
	Subject  string
	Creator  string
	Created  string
	Modified string
}

// Doc describes a document to write.
type Doc struct {
	Body []Block
	Core *Core

	// Omit lists package parts left out of the zip, such as "word/document.xml".
	Omit []string
}

// Write creates a .docx package at path and returns path.
func Write(t testing.TB, path string, doc Doc) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating fixture dir: %v", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := map[string]string{
		"[Content_Types].xml":          contentTypes,
		"_rels/.rels":                  packageRels,
		"word/_rels/document.xml.rels": documentRels,
		"word/document.xml":            documentXML(doc.Body),
	}
	if doc.Core != nil {
		parts["docProps/core.xml"] = coreXML(*doc.Core)
	}
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/_rels/document.xml.rels", "word/document.xml", "docProps/core.xml"} {
		body, ok := parts[name]
		if !ok || slices.Contains(doc.Omit, name) {
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
	return path
}

// GearheadReport is a short weekly operations report used across tests.
func GearheadReport() Doc {
	return Doc{
		Body: []Block{
			P("Gearhead Cycles - Weekly Operations Report"),
			P("Week 45 (November 3 - November 9, 2025)"),
			P("Prepared by the Operations Team at Gearhead Cycles, Portland assembly plant."),
			P(""),
			P("Overall Equipment Effectiveness (OEE) reached 78.5% this week, up from 76.2% in Week 44."),
			P("On-Time Delivery (OTD) improved to 94.2% against a target of 95%."),
			T(
				[]string{"KPI", "Value", "Target"},
				[]string{"First Pass Yield", "96.8%", "97%"},
				[]string{"Units Produced", "1,840 units", "1,800 units"},
			),
			P("Our frame supplier Apex Alloys Ltd shipped 1,250 frames. The quarterly review with Summit Logistics Inc is scheduled for November 20, 2025."),
		},
		Core: &Core{
			Title:    "Weekly Operations Report",
			Creator:  "Operations Team",
			Created:  "2025-11-10T08:00:00Z",
			Modified: "2025-11-10T09:30:00Z",
		},
	}
}

func documentXML(body []Block) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>`)
	for _, blk := range body {
		if blk.XML != "" {
			b.WriteString(blk.XML)
			continue
		}
		if blk.Table != nil {
			b.WriteString("<w:tbl>")
			for _, row := range blk.Table {
				b.WriteString("<w:tr>")
				for _, cell := range row {
					b.WriteString("<w:tc>")
					for _, line := range strings.Split(cell, "\n") {
						b.WriteString(paragraphXML(line, ""))
					}
					b.WriteString("</w:tc>")
				}
				b.WriteString("</w:tr>")
			}
			b.WriteString("</w:tbl>")
			continue
		}
		b.WriteString(paragraphXML(blk.Paragraph, blk.LinkText))
	}
	b.WriteString("</w:body></w:document>")
	return b.String()
}

func paragraphXML(text, link string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	if text != "" {
		fmt.Fprintf(&b, `<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, escape(text))
	}
	if link != "" {
		fmt.Fprintf(&b, `<w:hyperlink r:id="rId9"><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:hyperlink>`, escape(link))
	}
	b.WriteString("</w:p>")
	return b.String()
}

func coreXML(c Core) string {
	return xml.Header + fmt.Sprintf(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`+
		`<dc:title>%s</dc:title><dc:subject>%s</dc:subject><dc:creator>%s</dc:creator>`+
		`<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created><dcterms:modified xsi:type="dcterms:W3CDTF">%s</dcterms:modified>`+
		`</cp:coreProperties>`,
		escape(c.Title), escape(c.Subject), escape(c.Creator), escape(c.Created), escape(c.Modified))
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

const contentTypes = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const packageRels = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentRels = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId9" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com/report" TargetMode="External"/>` +
	`</Relationships>`
