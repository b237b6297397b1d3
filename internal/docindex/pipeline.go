package docindex

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/fillvault/mcp-doc-indexer/internal/autofill"
	"github.com/fillvault/mcp-doc-indexer/internal/checksum"
	"github.com/fillvault/mcp-doc-indexer/internal/classify"
	"github.com/fillvault/mcp-doc-indexer/internal/extract"
	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

const (
	// DefaultMaxPages is the hard page-count cap; larger documents abort
	// with too-large before any write.
	DefaultMaxPages = 100

	// DefaultExtractBudget bounds the characters handed to the enrichment
	// collaborator.
	DefaultExtractBudget = 10000

	// TruncationMarker is appended whenever the extract budget cuts text.
	TruncationMarker = "\n\n[TRUNCATED]"
)

// Options configures an Indexer. Zero values pick the defaults above.
type Options struct {
	OCR        *extract.Chain
	Rasterizer extract.Rasterizer
	Enricher   extract.Enricher

	MaxPages      int
	ExtractBudget int

	// MaxFileSize rejects files above this byte count before they are
	// read; zero means no size limit.
	MaxFileSize int64

	// StrictExtraction re-raises enrichment failures instead of degrading
	// to raw text.
	StrictExtraction bool

	// CollaboratorRate throttles calls to external services; zero means
	// unthrottled.
	CollaboratorRate  rate.Limit
	CollaboratorBurst int
}

// Indexer runs the extraction pipeline. Files are processed one at a
// time; no two files are extracted concurrently.
type Indexer struct {
	store         *store.ManifestStore
	ocr           *extract.Chain
	rasterizer    extract.Rasterizer
	enricher      extract.Enricher
	limiter       *rate.Limiter
	maxPages      int
	extractBudget int
	maxFileSize   int64
	strict        bool
}

// NewIndexer creates an indexer over the given manifest store.
func NewIndexer(st *store.ManifestStore, opts Options) *Indexer {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	budget := opts.ExtractBudget
	if budget <= 0 {
		budget = DefaultExtractBudget
	}

	var limiter *rate.Limiter
	if opts.CollaboratorRate > 0 {
		burst := opts.CollaboratorBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.CollaboratorRate, burst)
	}

	return &Indexer{
		store:         st,
		ocr:           opts.OCR,
		rasterizer:    opts.Rasterizer,
		enricher:      opts.Enricher,
		limiter:       limiter,
		maxPages:      maxPages,
		extractBudget: budget,
		maxFileSize:   opts.MaxFileSize,
		strict:        opts.StrictExtraction,
	}
}

// IndexFile runs the full pipeline for one file:
// Parsing -> OCR (conditional) -> Extracting -> Writing.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (*IndexResult, error) {
	fileName := filepath.Base(path)

	docType := DetectType(path)
	if docType == "" {
		return &IndexResult{Status: StatusUnsupported, FileName: fileName}, nil
	}

	if ix.maxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot stat %s: %w", fileName, err)
		}
		if info.Size() > ix.maxFileSize {
			return &IndexResult{Status: StatusTooLarge, FileName: fileName}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", fileName, err)
	}

	sum := checksum.Compute(data)
	manifest := ix.store.ReadManifest()
	if !ix.store.ShouldReindex(manifest, fileName, sum) {
		entry := manifest.FindEntry(fileName)
		return &IndexResult{
			Status:     StatusSkipped,
			FileName:   fileName,
			DocumentID: entry.ID,
		}, nil
	}

	// Parsing.
	var parsed parsedFile
	switch docType {
	case store.DocumentTypeText:
		parsed = parseText(data)
	case store.DocumentTypeImage, store.DocumentTypeScreenshot:
		parsed = parseImage()
	case store.DocumentTypePDF:
		pageCount, err := pdfPageCount(data)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %s: %w", fileName, err)
		}
		if pageCount > ix.maxPages {
			return &IndexResult{
				Status:    StatusTooLarge,
				FileName:  fileName,
				PageCount: pageCount,
			}, nil
		}
		parsed = parsePDF(data, pageCount)
	}

	// OCR for scan-candidate pages. Failures here are fatal for the file:
	// a page's text is never left silently empty.
	if err := ix.runOCR(ctx, path, data, docType, &parsed); err != nil {
		return nil, err
	}

	entry := manifest.FindEntry(fileName)
	prevDoc := ix.previousDocument(entry)

	doc := &store.Document{
		ID:        ix.documentID(entry),
		FileName:  fileName,
		Type:      docType,
		IndexedAt: time.Now().UTC(),
		PageCount: parsed.pageCount,
		Pages:     parsed.pages,
	}
	if prevDoc != nil {
		doc.UsedFields = prevDoc.UsedFields
	}

	// Extracting. Unchanged, already-prepared documents skip the
	// heavyweight pass and reuse their prior enrichment.
	warning := ""
	llmPrepared := false
	if entry != nil && entry.LLMPrepared && entry.Checksum == sum && prevDoc != nil {
		reuseEnrichment(doc, prevDoc)
		llmPrepared = true
	} else {
		llmPrepared, warning, err = ix.enrich(ctx, doc)
		if err != nil {
			return nil, err
		}
	}

	// Local autofill index, merged with the collaborator's (explicit
	// collaborator output wins ties).
	local := autofill.Build(doc.Pages, doc.Entities)
	doc.SearchIndex = autofill.Merge(local, doc.SearchIndex)

	doc.Category = string(classify.Categorize(doc.WorkingText(), fileName))

	// Space optimization: once cleanup succeeded, per-page raw text is
	// dropped; the cleaned text is the working copy. Without cleanup the
	// raw text is the only usable text and must be retained.
	if doc.CleanText != "" {
		doc.RawText = ""
		for i := range doc.Pages {
			doc.Pages[i].RawText = ""
		}
	}

	// Writing: document first, then sidecar, then manifest.
	indexFile := doc.ID + ".json"
	searchIndexFile := doc.ID + ".search.index.json"
	if err := ix.store.WriteDocument(indexFile, doc); err != nil {
		return nil, err
	}
	if err := ix.store.WriteSearchIndex(searchIndexFile, doc.SearchIndex); err != nil {
		return nil, err
	}

	manifest.UpsertEntry(store.ManifestEntry{
		ID:              doc.ID,
		FileName:        fileName,
		Type:            docType,
		IndexFile:       indexFile,
		Checksum:        sum,
		SizeBytes:       int64(len(data)),
		IndexedAt:       doc.IndexedAt,
		Language:        doc.Language,
		Category:        doc.Category,
		LLMPrepared:     llmPrepared,
		NeedsReindex:    false,
		SearchIndexFile: searchIndexFile,
	})
	if err := ix.store.WriteManifest(manifest); err != nil {
		return nil, err
	}

	return &IndexResult{
		Status:     StatusIndexed,
		FileName:   fileName,
		DocumentID: doc.ID,
		PageCount:  parsed.pageCount,
		Warning:    warning,
	}, nil
}

// IndexDirectory indexes every supported file in dir, one at a time in
// sorted order, bounding concurrent calls to rate-limited services.
// Per-file failures are reported in the results, not raised.
func (ix *Indexer) IndexDirectory(ctx context.Context, dir string) ([]IndexResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var results []IndexResult
	for _, name := range names {
		result, err := ix.IndexFile(ctx, filepath.Join(dir, name))
		if err != nil {
			log.Printf("indexing %s failed: %v", name, err)
			results = append(results, IndexResult{
				Status:   StatusFailed,
				FileName: name,
				Warning:  err.Error(),
			})
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// runOCR fills the text of scan-candidate pages via the provider chain.
func (ix *Indexer) runOCR(ctx context.Context, path string, data []byte, docType store.DocumentType, parsed *parsedFile) error {
	if len(parsed.scanCandidates) == 0 {
		return nil
	}
	fileName := filepath.Base(path)

	for _, pageNum := range parsed.scanCandidates {
		var image []byte
		switch docType {
		case store.DocumentTypeImage, store.DocumentTypeScreenshot:
			image = data
		case store.DocumentTypePDF:
			if ix.rasterizer == nil {
				return fmt.Errorf("page %d of %s needs OCR but no page renderer is configured", pageNum, fileName)
			}
			if err := ix.wait(ctx); err != nil {
				return err
			}
			rendered, err := ix.rasterizer.RenderPage(ctx, path, pageNum)
			if err != nil {
				return fmt.Errorf("cannot render page %d of %s for OCR: %w", pageNum, fileName, err)
			}
			image = rendered
		default:
			continue
		}

		if err := ix.wait(ctx); err != nil {
			return err
		}
		result, err := ix.ocr.Recognize(ctx, image, fileName, pageNum)
		if err != nil {
			return err
		}
		parsed.pages[pageNum-1].RawText = strings.TrimSpace(result.Text)
	}
	return nil
}

// enrich runs the cleanup / entity / field collaborators over the parsed
// text. Failures degrade the document instead of aborting indexing unless
// strict extraction was requested. Returns whether the document is now
// fully LLM-prepared plus a warning describing any degradation.
func (ix *Indexer) enrich(ctx context.Context, doc *store.Document) (prepared bool, warning string, err error) {
	raw := ix.boundedText(doc)
	doc.RawText = raw

	if ix.enricher == nil {
		return false, "", nil
	}

	fail := func(stage string, cause error) (bool, string, error) {
		if ix.strict {
			return false, "", fmt.Errorf("%s failed for %s: %w", stage, doc.FileName, cause)
		}
		log.Printf("%s failed for %s, keeping raw text: %v", stage, doc.FileName, cause)
		return false, fmt.Sprintf("%s failed: %v", stage, cause), nil
	}

	if err := ix.wait(ctx); err != nil {
		return false, "", err
	}
	clean, cErr := ix.enricher.CleanText(ctx, raw, doc.FileName)
	if cErr != nil {
		return fail("text cleanup", cErr)
	}

	if err := ix.wait(ctx); err != nil {
		return false, "", err
	}
	entities, eErr := ix.enricher.ExtractEntities(ctx, clean, doc.FileName)
	if eErr != nil {
		return fail("entity extraction", eErr)
	}

	if err := ix.wait(ctx); err != nil {
		return false, "", err
	}
	fields, fErr := ix.enricher.OrganizeFields(ctx, clean, doc.FileName)
	if fErr != nil {
		return fail("field extraction", fErr)
	}

	// Search-index generation is optional enrichment on top of the local
	// builder; its failure only loses the collaborator's overrides.
	if err := ix.wait(ctx); err != nil {
		return false, "", err
	}
	remoteIdx, sErr := ix.enricher.BuildSearchIndex(ctx, clean, fields, doc.FileName)
	if sErr != nil {
		if ix.strict {
			return false, "", fmt.Errorf("search index generation failed for %s: %w", doc.FileName, sErr)
		}
		log.Printf("search index generation failed for %s: %v", doc.FileName, sErr)
		warning = fmt.Sprintf("search index generation failed: %v", sErr)
		remoteIdx = nil
	}

	doc.CleanText = strings.TrimSpace(clean)
	doc.Entities = entities.Entities
	doc.Summary = entities.Summary
	doc.SearchIndex = remoteIdx
	attachFields(doc, fields)

	return true, warning, nil
}

// boundedText concatenates page text and truncates it to the extract
// budget with an explicit marker.
func (ix *Indexer) boundedText(doc *store.Document) string {
	var parts []string
	for _, p := range doc.Pages {
		if p.RawText != "" {
			parts = append(parts, p.RawText)
		}
	}
	text := strings.Join(parts, "\n\n")
	if len(text) <= ix.extractBudget {
		return text
	}
	return text[:ix.extractBudget] + TruncationMarker
}

// attachFields places collaborator fields on the page whose text contains
// the value, defaulting to the first page.
func attachFields(doc *store.Document, fields []store.FieldEntry) {
	if len(doc.Pages) == 0 {
		return
	}
	for _, f := range fields {
		target := 0
		for i, p := range doc.Pages {
			if f.Value != "" && strings.Contains(p.RawText, f.Value) {
				target = i
				break
			}
		}
		doc.Pages[target].Fields = append(doc.Pages[target].Fields, f)
	}
}

// previousDocument loads the prior document blob for an entry, tolerating
// missing or unreadable blobs.
func (ix *Indexer) previousDocument(entry *store.ManifestEntry) *store.Document {
	if entry == nil {
		return nil
	}
	doc, err := ix.store.ReadDocument(entry.IndexFile)
	if err != nil {
		return nil
	}
	return doc
}

// documentID reuses the existing id for a re-indexed file so durable
// references (usedFields) stay valid; first indexing mints a new one.
func (ix *Indexer) documentID(entry *store.ManifestEntry) string {
	if entry != nil && entry.ID != "" {
		return entry.ID
	}
	return uuid.NewString()
}

// reuseEnrichment copies the heavyweight extraction products from the
// prior document instead of repeating collaborator calls.
func reuseEnrichment(doc, prev *store.Document) {
	doc.CleanText = prev.CleanText
	doc.Entities = prev.Entities
	doc.Summary = prev.Summary
	doc.SearchIndex = prev.SearchIndex
	doc.Language = prev.Language
	if doc.CleanText == "" {
		doc.RawText = prev.RawText
	}
	// Prior per-field extractions survive a rebuild from the same bytes.
	for i := range doc.Pages {
		for _, p := range prev.Pages {
			if p.PageNumber == doc.Pages[i].PageNumber {
				doc.Pages[i].Fields = p.Fields
				break
			}
		}
	}
}

// wait blocks on the collaborator rate limiter, if one is configured.
func (ix *Indexer) wait(ctx context.Context) error {
	if ix.limiter == nil {
		return nil
	}
	return ix.limiter.Wait(ctx)
}
