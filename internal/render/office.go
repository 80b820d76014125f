// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/report-extract/internal/container"
)

// DefaultOfficeImage is the headless office-suite image used by
// ContainerRenderer. It reads a .docx on stdin and writes a PDF to stdout.
const DefaultOfficeImage = "libreoffice-docx2pdf:latest"

var pdfMagic = []byte("%PDF-")

// ContainerRenderer converts documents by piping them through an office
// suite running in a container. It produces a full-fidelity rendering with
// every page of the source document.
type ContainerRenderer struct {
	runtime container.Runtime
	image   string
}

// NewContainerRenderer creates a renderer that runs image (or
// DefaultOfficeImage when empty) on rt. It verifies that the image exists
// locally before returning.
func NewContainerRenderer(ctx context.Context, rt container.Runtime, image string) (*ContainerRenderer, error) {
	if image == "" {
		image = DefaultOfficeImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("office image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerRenderer{runtime: rt, image: image}, nil
}

// Render implements Renderer.
func (c *ContainerRenderer) Render(ctx context.Context, docxPath, pdfPath string) error {
	f, err := os.Open(docxPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", docxPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := c.runtime.Run(ctx, c.image, f, &out, "--convert-to", "pdf"); err != nil {
		return err
	}
	if !bytes.HasPrefix(out.Bytes(), pdfMagic) {
		return fmt.Errorf("%s produced %d bytes that are not a PDF", c.image, out.Len())
	}

	if err := os.WriteFile(pdfPath, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", pdfPath, err)
	}
	return nil
}
