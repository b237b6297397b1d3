// Package extract defines the collaborator interfaces the indexing engine
// consumes for OCR, text cleanup, entity extraction, and field mapping.
// Implementations live in the host; the engine only depends on these
// contracts and on the fallback/validation policies in this package.
package extract

import (
	"context"

	"github.com/fillvault/mcp-doc-indexer/internal/match"
	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// OCRResult is the outcome of one OCR attempt.
type OCRResult struct {
	Text       string
	Confidence float64 // 0.0–1.0, provider-declared
}

// OCRProvider recognizes text in an image. Providers are tried in order by
// the Chain; each attempt either succeeds or returns an error.
type OCRProvider interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (OCRResult, error)
}

// Rasterizer renders one PDF page to an image for OCR. PDF text
// extraction happens locally, but rendering scanned pages is delegated to
// the host like the other vision services.
type Rasterizer interface {
	RenderPage(ctx context.Context, path string, pageNumber int) ([]byte, error)
}

// EntityResult carries entities bucketed by kind plus a short summary.
type EntityResult struct {
	Entities map[string][]string
	Summary  string
}

// Enricher is the text-understanding collaborator used by the Extracting
// phase. All methods are best-effort; the pipeline recovers from their
// failures unless the caller demands strict extraction.
type Enricher interface {
	CleanText(ctx context.Context, rawText, docName string) (string, error)
	ExtractEntities(ctx context.Context, text, docName string) (EntityResult, error)
	OrganizeFields(ctx context.Context, text, docName string) ([]store.FieldEntry, error)
	BuildSearchIndex(ctx context.Context, text string, fields []store.FieldEntry, docName string) (*store.SearchIndexFile, error)
}

// FieldMapper resolves live form fields against the indexed documents,
// optionally informed by free text the user typed alongside the form.
// Hosts may wire a smarter mapper; when none is configured the server
// falls back to its local query engine.
type FieldMapper interface {
	MapFieldsToValues(ctx context.Context, fields []match.LiveField, docs []*store.Document, rawInput string) ([]match.FormKVMapping, error)
}
