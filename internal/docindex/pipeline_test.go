package docindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillvault/mcp-doc-indexer/internal/extract"
	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// fakeEnricher parses "Label: value" lines and records call counts.
type fakeEnricher struct {
	cleanCalls int
	failStage  string
}

func (f *fakeEnricher) CleanText(_ context.Context, raw, _ string) (string, error) {
	f.cleanCalls++
	if f.failStage == "clean" {
		return "", errors.New("cleanup unavailable")
	}
	return strings.TrimSpace(raw), nil
}

func (f *fakeEnricher) ExtractEntities(_ context.Context, text, _ string) (extract.EntityResult, error) {
	if f.failStage == "entities" {
		return extract.EntityResult{}, errors.New("entity service down")
	}
	result := extract.EntityResult{Entities: map[string][]string{}, Summary: "a document"}
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "@") {
			result.Entities["emails"] = append(result.Entities["emails"], lastField(line))
		}
	}
	return result, nil
}

func (f *fakeEnricher) OrganizeFields(_ context.Context, text, _ string) ([]store.FieldEntry, error) {
	if f.failStage == "fields" {
		return nil, errors.New("field service down")
	}
	var fields []store.FieldEntry
	for _, line := range strings.Split(text, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields = append(fields, store.FieldEntry{
			Label:      strings.TrimSpace(label),
			Value:      strings.TrimSpace(value),
			Confidence: store.ConfidenceHigh,
		})
	}
	return fields, nil
}

func (f *fakeEnricher) BuildSearchIndex(_ context.Context, _ string, _ []store.FieldEntry, _ string) (*store.SearchIndexFile, error) {
	if f.failStage == "searchindex" {
		return nil, errors.New("search index service down")
	}
	return nil, nil
}

func lastField(line string) string {
	fields := strings.Fields(line)
	return fields[len(fields)-1]
}

type stubOCR struct {
	text string
	err  error
}

func (s *stubOCR) Name() string { return "stub" }

func (s *stubOCR) Recognize(_ context.Context, _ []byte) (extract.OCRResult, error) {
	if s.err != nil {
		return extract.OCRResult{}, s.err
	}
	return extract.OCRResult{Text: s.text, Confidence: 0.9}, nil
}

type testEnv struct {
	dir     string
	store   *store.ManifestStore
	indexer *Indexer
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	blob, err := store.NewBlob(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	st := store.NewManifestStore(blob)
	return &testEnv{
		dir:     t.TempDir(),
		store:   st,
		indexer: NewIndexer(st, opts),
	}
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexFile_UnsupportedExtension(t *testing.T) {
	env := newTestEnv(t, Options{})
	path := env.writeFile(t, "archive.zip", "binary")

	result, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusUnsupported, result.Status)

	// No side effects: manifest still empty.
	assert.Empty(t, env.store.ReadManifest().Documents)
}

func TestIndexFile_AssignsCategory(t *testing.T) {
	env := newTestEnv(t, Options{})
	path := env.writeFile(t, "stub.txt",
		"Pay period: 03/01 - 03/15\nGross pay: $3,200.00\nNet pay: $2,450.00\nDeductions\nYear to date")

	result, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, StatusIndexed, result.Status)

	entry := env.store.ReadManifest().FindEntry("stub.txt")
	require.NotNil(t, entry)
	assert.Equal(t, "pay-stub", entry.Category)

	doc, err := env.store.ReadDocument(entry.IndexFile)
	require.NoError(t, err)
	assert.Equal(t, "pay-stub", doc.Category)
}

func TestIndexFile_OversizedFileRejected(t *testing.T) {
	env := newTestEnv(t, Options{MaxFileSize: 8})
	path := env.writeFile(t, "big.txt", "this file is larger than eight bytes")

	result, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusTooLarge, result.Status)
	assert.Empty(t, env.store.ReadManifest().Documents)
}

func TestIndexFile_TextFileIndexedThenSkipped(t *testing.T) {
	env := newTestEnv(t, Options{Enricher: &fakeEnricher{}})
	path := env.writeFile(t, "contact.txt", "Email Address: a@b.com")

	first, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, first.Status)
	assert.NotEmpty(t, first.DocumentID)
	assert.Equal(t, 1, first.PageCount)

	second, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, second.Status)
	assert.Equal(t, first.DocumentID, second.DocumentID)
}

func TestIndexFile_DeletedBlobReindexes(t *testing.T) {
	env := newTestEnv(t, Options{Enricher: &fakeEnricher{}})
	path := env.writeFile(t, "contact.txt", "Email Address: a@b.com")

	first, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, env.store.Blob().Delete(first.DocumentID+".json"))

	again, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, again.Status)
	// The id survives because the manifest entry still carries it.
	assert.Equal(t, first.DocumentID, again.DocumentID)
}

func TestIndexFile_ChangedContentReindexesSameID(t *testing.T) {
	env := newTestEnv(t, Options{Enricher: &fakeEnricher{}})
	path := env.writeFile(t, "contact.txt", "Email Address: a@b.com")

	first, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)

	env.writeFile(t, "contact.txt", "Email Address: new@b.com")
	second, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, StatusIndexed, second.Status)
	assert.Equal(t, first.DocumentID, second.DocumentID)
}

func TestIndexFile_AutofillScenario(t *testing.T) {
	env := newTestEnv(t, Options{Enricher: &fakeEnricher{}})
	path := env.writeFile(t, "contact.txt", "Email Address: a@b.com")

	result, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)

	entry := env.store.ReadManifest().FindEntry("contact.txt")
	require.NotNil(t, entry)
	assert.True(t, entry.LLMPrepared)

	doc, err := env.store.ReadDocument(entry.IndexFile)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.NotNil(t, doc.SearchIndex)
	assert.Equal(t, "a@b.com", doc.SearchIndex.Autofill["email_address"])
	assert.Equal(t, result.DocumentID, doc.ID)

	// The sidecar blob is persisted alongside the document.
	assert.True(t, env.store.Blob().Exists(doc.ID+".search.index.json"))
}

func TestIndexFile_CleanupDropsPageRawText(t *testing.T) {
	env := newTestEnv(t, Options{Enricher: &fakeEnricher{}})
	path := env.writeFile(t, "contact.txt", "Email Address: a@b.com")

	result, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)

	doc, err := env.store.ReadDocument(result.DocumentID + ".json")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.CleanText)
	assert.Empty(t, doc.RawText)
	for _, p := range doc.Pages {
		assert.Empty(t, p.RawText)
	}
}

func TestIndexFile_EnrichmentFailureIsNonFatal(t *testing.T) {
	env := newTestEnv(t, Options{Enricher: &fakeEnricher{failStage: "entities"}})
	path := env.writeFile(t, "contact.txt", "Email Address: a@b.com")

	result, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, result.Status)
	assert.Contains(t, result.Warning, "entity extraction")

	entry := env.store.ReadManifest().FindEntry("contact.txt")
	require.NotNil(t, entry)
	assert.False(t, entry.LLMPrepared)

	// Raw text retained as the only usable text.
	doc, err := env.store.ReadDocument(entry.IndexFile)
	require.NoError(t, err)
	assert.Empty(t, doc.CleanText)
	assert.Equal(t, "Email Address: a@b.com", doc.RawText)
}

func TestIndexFile_StrictExtractionPropagates(t *testing.T) {
	env := newTestEnv(t, Options{
		Enricher:         &fakeEnricher{failStage: "clean"},
		StrictExtraction: true,
	})
	path := env.writeFile(t, "contact.txt", "Email Address: a@b.com")

	_, err := env.indexer.IndexFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text cleanup")
}

func TestIndexFile_PreparedDocSkipsRepeatEnrichment(t *testing.T) {
	enricher := &fakeEnricher{}
	env := newTestEnv(t, Options{Enricher: enricher})
	path := env.writeFile(t, "contact.txt", "Email Address: a@b.com")

	_, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, enricher.cleanCalls)

	// Force a refresh without changing content.
	require.NoError(t, env.store.MarkNeedsReindex("contact.txt"))

	result, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, result.Status)
	// Heavyweight extraction was not repeated.
	assert.Equal(t, 1, enricher.cleanCalls)

	entry := env.store.ReadManifest().FindEntry("contact.txt")
	assert.True(t, entry.LLMPrepared)
	assert.False(t, entry.NeedsReindex)
}

func TestIndexFile_ImageUsesOCR(t *testing.T) {
	chain := extract.NewChain([]extract.OCRProvider{&stubOCR{text: "Passport Number: P1234567"}}, 0.5)
	env := newTestEnv(t, Options{OCR: chain, Enricher: &fakeEnricher{}})
	path := env.writeFile(t, "passport.png", "fake image bytes")

	result, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, result.Status)

	doc, err := env.store.ReadDocument(result.DocumentID + ".json")
	require.NoError(t, err)
	assert.Equal(t, store.DocumentTypeImage, doc.Type)
	assert.Equal(t, "P1234567", doc.SearchIndex.Autofill["passport_number"])
}

func TestIndexFile_OCRFailureIsFatalAndWritesNothing(t *testing.T) {
	chain := extract.NewChain([]extract.OCRProvider{&stubOCR{err: errors.New("quota")}}, 0.5)
	env := newTestEnv(t, Options{OCR: chain})
	path := env.writeFile(t, "scan.jpg", "fake image bytes")

	_, err := env.indexer.IndexFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan.jpg")
	assert.Empty(t, env.store.ReadManifest().Documents)
}

func TestIndexFile_TruncatesExtractInput(t *testing.T) {
	env := newTestEnv(t, Options{Enricher: &fakeEnricher{}, ExtractBudget: 50})
	long := strings.Repeat("word ", 40) // 200 chars
	path := env.writeFile(t, "long.txt", long)

	result, err := env.indexer.IndexFile(context.Background(), path)
	require.NoError(t, err)

	doc, err := env.store.ReadDocument(result.DocumentID + ".json")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(doc.CleanText, strings.TrimSpace(TruncationMarker)))
	assert.LessOrEqual(t, len(doc.CleanText), 50+len(TruncationMarker))
}

func TestIndexDirectory_SequentialAndReported(t *testing.T) {
	env := newTestEnv(t, Options{Enricher: &fakeEnricher{}})
	env.writeFile(t, "a.txt", "Email: a@b.com")
	env.writeFile(t, "b.zip", "unsupported")
	env.writeFile(t, "c.txt", "Phone: 555-0100")

	results, err := env.indexer.IndexDirectory(context.Background(), env.dir)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, StatusIndexed, results[0].Status)
	assert.Equal(t, StatusUnsupported, results[1].Status)
	assert.Equal(t, StatusIndexed, results[2].Status)
}

func TestIndexDirectory_ReportsFailedFiles(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.writeFile(t, "a.txt", "Email: a@b.com")
	env.writeFile(t, "broken.pdf", "not a pdf at all")

	results, err := env.indexer.IndexDirectory(context.Background(), env.dir)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, StatusIndexed, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.NotEmpty(t, results[1].Warning)

	// The unparsable file left no manifest entry behind.
	assert.Nil(t, env.store.ReadManifest().FindEntry("broken.pdf"))
}
