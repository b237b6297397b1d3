// Package docindex orchestrates the extraction pipeline: parsing, OCR
// fallback, text enrichment, and the write phase that keeps the manifest
// and document blobs consistent.
package docindex

import (
	"path/filepath"
	"strings"

	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// Status is the terminal outcome of one indexing attempt.
type Status string

const (
	StatusIndexed     Status = "indexed"
	StatusSkipped     Status = "skipped"
	StatusUnsupported Status = "unsupported"
	StatusTooLarge    Status = "too-large"
	// StatusFailed marks a per-file pipeline error (parse, OCR, or
	// storage) surfaced in a directory run instead of aborting it.
	StatusFailed Status = "failed"
)

// IndexResult carries enough information for the host to render a
// specific, actionable message per file.
type IndexResult struct {
	Status     Status `json:"status"`
	FileName   string `json:"fileName"`
	DocumentID string `json:"documentId,omitempty"`
	PageCount  int    `json:"pageCount,omitempty"`
	// Warning notes a recovered, non-fatal degradation (for example a
	// failed enrichment pass that left raw text in place).
	Warning string `json:"warning,omitempty"`
}

var textExtensions = map[string]bool{
	".txt": true, ".text": true, ".md": true, ".csv": true, ".rtf": true,
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
	".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// DetectType classifies a file by extension. Image files whose name
// mentions a screen capture are classified as screenshots; the empty
// string means the extension is not recognized.
func DetectType(path string) store.DocumentType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return store.DocumentTypePDF
	case textExtensions[ext]:
		return store.DocumentTypeText
	case imageExtensions[ext]:
		name := strings.ToLower(filepath.Base(path))
		if strings.Contains(name, "screenshot") || strings.Contains(name, "screen shot") ||
			strings.Contains(name, "screen-shot") {
			return store.DocumentTypeScreenshot
		}
		return store.DocumentTypeImage
	default:
		return ""
	}
}
