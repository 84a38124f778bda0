package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Validator checks uploaded PDFs before they are handed to the embedding API.
type Validator struct {
	tempDir  string
	maxPages int
}

// NewValidator creates a PDF validator. maxPages of 0 disables the page cap.
func NewValidator(maxPages int) *Validator {
	tempDir := filepath.Join(os.TempDir(), "meilivault-pdf")
	os.MkdirAll(tempDir, 0755)

	return &Validator{
		tempDir:  tempDir,
		maxPages: maxPages,
	}
}

// ValidatePDF checks that data is a well-formed PDF within the page cap and
// returns its page count. pdfcpu works on files, so the bytes go through a
// temp file.
func (v *Validator) ValidatePDF(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty file")
	}

	tempFile := filepath.Join(v.tempDir, fmt.Sprintf("upload_%s.pdf", uuid.New().String()))
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	defer os.Remove(tempFile)

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return 0, fmt.Errorf("not a valid PDF: %w", err)
	}

	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	if v.maxPages > 0 && pageCount > v.maxPages {
		return pageCount, fmt.Errorf("PDF has %d pages, maximum is %d", pageCount, v.maxPages)
	}
	return pageCount, nil
}
