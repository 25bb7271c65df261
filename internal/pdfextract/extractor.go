// Package pdfextract converts PDF bytes into page-indexed plain text.
package pdfextract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/sectordocs/caodex/internal/domain"
)

// Page is the extracted text of a single PDF page. Numbers are 1-based.
type Page struct {
	Number int
	Text   string
}

// Extractor extracts page texts from raw PDF bytes. It is stateless and
// safe for concurrent use.
type Extractor struct{}

// New creates a new Extractor instance
func New() *Extractor {
	return &Extractor{}
}

// Extract converts raw PDF bytes into ordered page texts. Pages with no
// extractable text yield an empty string rather than failing the document.
// Returns an EXTRACTION_ERROR domain error when the bytes are not a valid
// PDF or no page could be read.
func (e *Extractor) Extract(data []byte) (pages []Page, err error) {
	// The pdf library panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "malformed PDF", fmt.Errorf("%v", r))
		}
	}()

	if len(data) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeExtraction, "empty document")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "not a valid PDF", err)
	}

	total := reader.NumPage()
	if total == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeExtraction, "PDF has no pages")
	}

	pages = make([]Page, 0, total)
	recovered := 0
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		text := ""
		if !page.V.IsNull() {
			if plain, textErr := page.GetPlainText(nil); textErr == nil {
				text = sanitize(plain)
				recovered++
			}
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	if recovered == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeExtraction, "no readable pages")
	}

	return pages, nil
}

func sanitize(text string) string {
	return strings.ReplaceAll(text, "\x00", " ")
}
