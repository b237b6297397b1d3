package docindex

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// MinEmbeddedTextChars is the per-page threshold below which an embedded
// PDF text layer is treated as absent and the page becomes a scan
// candidate for OCR.
const MinEmbeddedTextChars = 40

// parsedFile is the outcome of the Parsing phase.
type parsedFile struct {
	pages          []store.Page
	pageCount      int
	scanCandidates []int // page numbers needing OCR
}

// parseText wraps a plain-text file as a single page.
func parseText(data []byte) parsedFile {
	text := strings.TrimSpace(string(data))
	return parsedFile{
		pages:     []store.Page{{PageNumber: 1, RawText: text}},
		pageCount: 1,
	}
}

// parseImage defers entirely to OCR: one empty page, flagged as a scan
// candidate.
func parseImage() parsedFile {
	return parsedFile{
		pages:          []store.Page{{PageNumber: 1}},
		pageCount:      1,
		scanCandidates: []int{1},
	}
}

// pdfPageCount counts pages without a full text parse, so the too-large
// cap can abort before any heavier work.
func pdfPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx.PageCount, nil
}

// parsePDF extracts the embedded text of each page. Pages with too little
// embedded text are flagged as scan candidates rather than failed; a page
// whose text extraction errors degrades to an empty scan-candidate page.
func parsePDF(data []byte, pageCount int) parsedFile {
	parsed := parsedFile{pageCount: pageCount}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// Unparsable text layer: every page defers to OCR.
		for n := 1; n <= pageCount; n++ {
			parsed.pages = append(parsed.pages, store.Page{PageNumber: n})
			parsed.scanCandidates = append(parsed.scanCandidates, n)
		}
		return parsed
	}

	for n := 1; n <= reader.NumPage(); n++ {
		page := reader.Page(n)
		text := ""
		if !page.V.IsNull() {
			if content, err := page.GetPlainText(nil); err == nil {
				text = strings.TrimSpace(content)
			}
		}

		parsed.pages = append(parsed.pages, store.Page{PageNumber: n, RawText: text})
		if len(text) < MinEmbeddedTextChars {
			parsed.scanCandidates = append(parsed.scanCandidates, n)
		}
	}
	return parsed
}
