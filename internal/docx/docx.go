// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docx reads the text content of Word (.docx) documents: body
// paragraphs, top-level table rows, and core document properties.
package docx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// Extension is the only file extension accepted by the reader.
	Extension = ".docx"

	blockSeparator = "\n\n"
	cellSeparator  = " | "
)

var (
	// ErrNotFound reports that the document path does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrFormatMismatch reports a path whose extension is not .docx.
	ErrFormatMismatch = errors.New("expected .docx file")

	// ErrInvalidDocument reports a .docx file that is not a readable OPC package.
	ErrInvalidDocument = errors.New("invalid docx package")
)

// ExtractText returns all text of the document at path as one string.
// Non-blank body paragraphs come first in document order, followed by one
// line per table row with its non-blank cells joined by " | ". Blocks are
// separated by a blank line.
func ExtractText(path string) (string, error) {
	pkg, err := open(path)
	if err != nil {
		return "", err
	}
	defer pkg.Close()

	c, err := pkg.content()
	if err != nil {
		return "", err
	}

	blocks := c.paragraphs
	for _, cells := range c.rows {
		var kept []string
		for _, cell := range cells {
			if cell = strings.TrimSpace(cell); cell != "" {
				kept = append(kept, cell)
			}
		}
		if len(kept) > 0 {
			blocks = append(blocks, strings.Join(kept, cellSeparator))
		}
	}

	return strings.Join(blocks, blockSeparator), nil
}

// Paragraphs returns the non-blank body paragraphs of the document at path.
// Table content is not included.
func Paragraphs(path string) ([]string, error) {
	pkg, err := open(path)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()

	c, err := pkg.content()
	if err != nil {
		return nil, err
	}
	return c.paragraphs, nil
}

// Check validates that path exists and carries the .docx extension.
func Check(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s: %w", ErrNotFound, path, fs.ErrNotExist)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if ext := filepath.Ext(path); !strings.EqualFold(ext, Extension) {
		return fmt.Errorf("%w, got %q: %s", ErrFormatMismatch, ext, path)
	}
	return nil
}

// pkgFile is an opened .docx file with its zip directory.
type pkgFile struct {
	path string
	f    *os.File
	zr   *zip.Reader
}

func open(path string) (*pkgFile, error) {
	if err := Check(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, path, err)
	}

	return &pkgFile{path: path, f: f, zr: zr}, nil
}

func (p *pkgFile) Close() error {
	return p.f.Close()
}
