// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docx

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	wordNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	documentPart = "word/document.xml"
)

// content is the text of word/document.xml split into body paragraphs and
// top-level table rows, each in document order.
type content struct {
	paragraphs []string
	rows       [][]string
}

func (p *pkgFile) content() (content, error) {
	part := findPart(p.zr, documentPart)
	if part == nil {
		return content{}, fmt.Errorf("%w: %s: missing %s", ErrInvalidDocument, p.path, documentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return content{}, fmt.Errorf("%w: %s: opening %s: %v", ErrInvalidDocument, p.path, documentPart, err)
	}
	defer rc.Close()

	c, err := scanDocument(rc)
	if err != nil {
		return content{}, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, p.path, err)
	}
	return c, nil
}

// documentScanner walks the document XML keeping the stack of open
// elements. Paragraphs directly under w:body or directly under a cell of a
// top-level table are collected; nested tables and text boxes are not.
// Only w:r children of a collected paragraph, directly or through a
// w:hyperlink, contribute text.
type documentScanner struct {
	stack []xml.Name

	out  content
	row  []string
	cell []string

	para   strings.Builder
	paraAt int // stack index of the collected paragraph; -1 when none
	inCell bool
}

func scanDocument(r io.Reader) (content, error) {
	d := xml.NewDecoder(r)
	s := &documentScanner{paraAt: -1}

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return s.out, nil
		}
		if err != nil {
			return content{}, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			consumed, err := s.start(d, t)
			if err != nil {
				return content{}, err
			}
			if !consumed {
				s.stack = append(s.stack, t.Name)
			}
		case xml.EndElement:
			if len(s.stack) == 0 {
				continue
			}
			s.stack = s.stack[:len(s.stack)-1]
			s.end(t.Name)
		}
	}
}

// start handles an opening element. It reports whether the element was
// decoded whole, in which case no end token follows.
func (s *documentScanner) start(d *xml.Decoder, el xml.StartElement) (bool, error) {
	if el.Name.Space != wordNS {
		return false, nil
	}

	switch el.Name.Local {
	case "tr":
		if s.at("body", "tbl") {
			s.row = nil
		}
	case "tc":
		if s.at("body", "tbl", "tr") {
			s.inCell = true
			s.cell = nil
		}
	case "p":
		if s.at("body") || s.at("body", "tbl", "tr", "tc") {
			s.paraAt = len(s.stack)
			s.para.Reset()
		}
	case "t":
		if s.inRun() {
			var text struct {
				Value string `xml:",chardata"`
			}
			if err := d.DecodeElement(&text, &el); err != nil {
				return false, err
			}
			s.para.WriteString(text.Value)
			return true, nil
		}
	case "tab", "ptab":
		if s.inRun() {
			s.para.WriteByte('\t')
		}
	case "br", "cr":
		if s.inRun() {
			s.para.WriteByte('\n')
		}
	case "noBreakHyphen":
		if s.inRun() {
			s.para.WriteByte('-')
		}
	}
	return false, nil
}

// end handles a closing element after it was popped from the stack.
func (s *documentScanner) end(name xml.Name) {
	if name.Space != wordNS {
		return
	}

	switch name.Local {
	case "p":
		if s.paraAt != len(s.stack) {
			return
		}
		s.paraAt = -1
		if s.inCell {
			s.cell = append(s.cell, s.para.String())
			return
		}
		if text := s.para.String(); strings.TrimSpace(text) != "" {
			s.out.paragraphs = append(s.out.paragraphs, text)
		}
	case "tc":
		if s.inCell && s.at("body", "tbl", "tr") {
			s.row = append(s.row, strings.Join(s.cell, "\n"))
			s.inCell = false
		}
	case "tr":
		if s.at("body", "tbl") {
			s.out.rows = append(s.out.rows, s.row)
			s.row = nil
		}
	}
}

// at reports whether the open elements below w:document are exactly path.
func (s *documentScanner) at(path ...string) bool {
	rest := s.stack
	if len(rest) > 0 && isWord(rest[0], "document") {
		rest = rest[1:]
	}
	if len(rest) != len(path) {
		return false
	}
	for i, local := range path {
		if !isWord(rest[i], local) {
			return false
		}
	}
	return true
}

// inRun reports whether the element about to open is a direct child of a
// run that belongs to the collected paragraph.
func (s *documentScanner) inRun() bool {
	if s.paraAt < 0 {
		return false
	}
	below := s.stack[s.paraAt+1:]
	switch len(below) {
	case 1:
		return isWord(below[0], "r")
	case 2:
		return isWord(below[0], "hyperlink") && isWord(below[1], "r")
	}
	return false
}

func isWord(n xml.Name, local string) bool {
	return n.Space == wordNS && n.Local == local
}

func findPart(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}
