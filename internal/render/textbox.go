// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/pdiddy/report-extract/internal/docx"
)

// Page geometry in points on an A4 sheet.
const (
	boxLeft   = 50.0
	boxTop    = 50.0
	boxRight  = 550.0
	boxBottom = 750.0

	fontFamily = "Helvetica"
	fontSize   = 10.0
	lineHeight = 12.0

	// DefaultMaxChars is the number of characters placed on the page.
	DefaultMaxChars = 2000
)

// TextBoxRenderer draws the document's paragraphs as plain text inside a
// fixed rectangle on a single page. Text past the bottom of the box is
// dropped.
type TextBoxRenderer struct {
	// MaxChars limits the rendered text, counted in characters. Zero
	// means DefaultMaxChars.
	MaxChars int
}

// Render implements Renderer.
func (r TextBoxRenderer) Render(_ context.Context, docxPath, pdfPath string) error {
	paras, err := docx.Paragraphs(docxPath)
	if err != nil {
		return err
	}

	pdf := r.layout(strings.Join(paras, "\n"))
	if err := pdf.OutputFileAndClose(pdfPath); err != nil {
		return fmt.Errorf("writing %s: %w", pdfPath, err)
	}
	return nil
}

func (r TextBoxRenderer) maxChars() int {
	if r.MaxChars > 0 {
		return r.MaxChars
	}
	return DefaultMaxChars
}

// layout builds the one-page document for text.
func (r TextBoxRenderer) layout(text string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(boxLeft, boxTop, 0)
	pdf.SetCellMargin(0)
	pdf.SetCreator("report-extract", true)
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", fontSize)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	y := boxTop
	for _, line := range wrap(pdf, latin1(truncate(text, r.maxChars())), boxRight-boxLeft) {
		if y+lineHeight > boxBottom {
			break
		}
		pdf.SetXY(boxLeft, y)
		pdf.CellFormat(boxRight-boxLeft, lineHeight, tr(line), "", 0, "L", false, 0, "")
		y += lineHeight
	}
	return pdf
}

// wrap splits text into lines no wider than width. Explicit newlines
// always start a new line.
func wrap(pdf *fpdf.Fpdf, text string, width float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		split := pdf.SplitText(para, width)
		if len(split) == 0 {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, split...)
	}
	return lines
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// typographic maps common punctuation outside Latin-1 to ASCII.
var typographic = map[rune]string{
	'–': "-", '—': "-", '−': "-",
	'‘': "'", '’': "'",
	'“': `"`, '”': `"`,
	'…': "...", '•': "*",
	'€': "EUR", '\t': " ",
}

// latin1 rewrites s so that every rune is printable in the core PDF fonts.
// Runes with no replacement become '?'.
func latin1(s string) string {
	var b strings.Builder
	for _, c := range s {
		if rep, ok := typographic[c]; ok {
			b.WriteString(rep)
			continue
		}
		switch {
		case c == '\n':
			b.WriteRune(c)
		case c < 0x20, c >= 0x7f && c < 0xa0, c > 0xff:
			b.WriteByte('?')
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
