package filing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Attachment describes one embedded document rendition.
type Attachment struct {
	ControlID string
	PDF       bool
	Pages     int
	Err       error
}

// InspectAttachments decodes every embedded base64 object and validates the
// PDF ones. Non-PDF payloads are reported but not validated.
func InspectAttachments(d *Document) ([]Attachment, error) {
	tempDir, err := os.MkdirTemp("", "filing-attachments-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	var out []Attachment
	for i, obj := range DescendantsLocal(d.Root(), "BinaryBase64Object", false) {
		a := Attachment{ControlID: controlID(obj)}
		raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(Value(obj)), ""))
		if err != nil {
			a.Err = fmt.Errorf("failed to decode attachment: %w", err)
			out = append(out, a)
			continue
		}
		if !bytes.HasPrefix(raw, []byte("%PDF")) {
			out = append(out, a)
			continue
		}
		a.PDF = true
		a.Pages, a.Err = validatePDF(filepath.Join(tempDir, fmt.Sprintf("%03d.pdf", i)), raw)
		out = append(out, a)
	}
	return out, nil
}

func validatePDF(path string, raw []byte) (int, error) {
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return 0, fmt.Errorf("failed to stage attachment: %w", err)
	}
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, cfg); err != nil {
		return 0, fmt.Errorf("invalid PDF: %w", err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return pages, nil
}

// controlID returns the DocumentFileControlID of the nearest enclosing
// document, if any.
func controlID(obj *etree.Element) string {
	for p := obj.Parent(); p != nil; p = p.Parent() {
		if id := FirstLocal(p, "DocumentFileControlID"); id != nil {
			return strings.TrimSpace(Value(id))
		}
	}
	return ""
}
