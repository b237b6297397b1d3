package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillvault/mcp-doc-indexer/internal/config"
	"github.com/fillvault/mcp-doc-indexer/internal/docindex"
	"github.com/fillvault/mcp-doc-indexer/internal/match"
	"github.com/fillvault/mcp-doc-indexer/internal/session"
	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

type testServer struct {
	server   *Server
	docsDir  string
	manifest *store.ManifestStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	docsDir := t.TempDir()
	indexDir := t.TempDir()

	blob, err := store.NewBlob(indexDir)
	require.NoError(t, err)
	manifest := store.NewManifestStore(blob)

	cacheBlob, err := store.NewBlob(filepath.Join(indexDir, "cache"))
	require.NoError(t, err)

	cfg := &config.Config{
		Mode:               "stdio",
		Host:               "127.0.0.1",
		Port:               8080,
		DocumentsDirectory: docsDir,
		IndexDirectory:     indexDir,
		MaxFileSize:        1024 * 1024,
		MaxPages:           10,
		LogLevel:           "info",
		ServerName:         "test-indexer",
		Version:            "1.0.0",
	}

	indexer := docindex.NewIndexer(manifest, docindex.Options{MaxPages: cfg.MaxPages})
	sessions := session.NewStore(manifest)
	cache := session.NewMappingCache(cacheBlob)

	srv, err := NewServer(cfg, indexer, manifest, sessions, cache, nil)
	require.NoError(t, err)

	return &testServer{server: srv, docsDir: docsDir, manifest: manifest}
}

// fakeMapper is a stand-in mapping collaborator that records the raw
// input it was handed.
type fakeMapper struct {
	lastRawInput string
	mappings     []match.FormKVMapping
	err          error
}

func (f *fakeMapper) MapFieldsToValues(_ context.Context, _ []match.LiveField, _ []*store.Document, rawInput string) ([]match.FormKVMapping, error) {
	f.lastRawInput = rawInput
	if f.err != nil {
		return nil, f.err
	}
	return f.mappings, nil
}

func (ts *testServer) writeDoc(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(ts.docsDir, name), []byte(content), 0o644))
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

// extractTextFromResult pulls the text payload out of a CallToolResult.
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}
	return ""
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	ts := newTestServer(t)

	_, err := NewServer(ts.server.config, nil, ts.server.manifest, ts.server.sessions, ts.server.cache, nil)
	assert.Error(t, err)

	_, err = NewServer(ts.server.config, ts.server.indexer, nil, ts.server.sessions, ts.server.cache, nil)
	assert.Error(t, err)
}

func TestHandleIndexFile(t *testing.T) {
	ts := newTestServer(t)
	ts.writeDoc(t, "notes.txt", "Email: a@b.com\nPhone: 555-0100")

	result, err := ts.server.handleIndexFile(context.Background(), callRequest(map[string]any{
		"path": "notes.txt", // relative paths resolve against the documents directory
	}))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Status: indexed")
	assert.Contains(t, text, "notes.txt")

	entry := ts.manifest.ReadManifest().FindEntry("notes.txt")
	require.NotNil(t, entry)
	assert.NotEmpty(t, entry.ID)
}

func TestHandleIndexFile_MissingPath(t *testing.T) {
	ts := newTestServer(t)

	result, err := ts.server.handleIndexFile(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleIndexDirectory(t *testing.T) {
	ts := newTestServer(t)
	ts.writeDoc(t, "a.txt", "Name: Jane Doe")
	ts.writeDoc(t, "b.txt", "City: Springfield")
	ts.writeDoc(t, "ignore.bin", "binary")

	result, err := ts.server.handleIndexDirectory(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "indexed: 2")
	assert.Contains(t, text, "unsupported: 1")
}

func TestHandleQueryIndex(t *testing.T) {
	ts := newTestServer(t)
	ts.writeDoc(t, "passport.txt", "Passport Number: P1234567\nIssued 2020")

	_, err := ts.server.handleIndexFile(context.Background(), callRequest(map[string]any{"path": "passport.txt"}))
	require.NoError(t, err)

	result, err := ts.server.handleQueryIndex(context.Background(), callRequest(map[string]any{
		"query": "Passport Number",
	}))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "passport.txt")
	assert.Contains(t, text, "P1234567")
}

func TestHandleQueryIndex_NoMatches(t *testing.T) {
	ts := newTestServer(t)

	result, err := ts.server.handleQueryIndex(context.Background(), callRequest(map[string]any{
		"query": "Routing Number",
	}))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "No candidates found")
}

func TestHandleBulkMatch_FillsAndCaches(t *testing.T) {
	ts := newTestServer(t)
	ts.writeDoc(t, "contact.txt", "Email: jane@example.com")

	_, err := ts.server.handleIndexFile(context.Background(), callRequest(map[string]any{"path": "contact.txt"}))
	require.NoError(t, err)

	args := map[string]any{
		"fields": []any{
			map[string]any{"id": "f-email", "label": "Email Address"},
			map[string]any{"id": "f-fax", "label": "Fax Machine Serial"},
		},
	}

	result, err := ts.server.handleBulkMatch(context.Background(), callRequest(args))
	require.NoError(t, err)
	text := extractTextFromResult(result)
	assert.Contains(t, text, "Filled 1 of")
	assert.Contains(t, text, "f-email")
	assert.NotContains(t, text, "cached")

	// Identical request on the same index hits the mapping cache.
	result, err = ts.server.handleBulkMatch(context.Background(), callRequest(args))
	require.NoError(t, err)
	text = extractTextFromResult(result)
	assert.Contains(t, text, "(from cached mapping)")
	assert.Contains(t, text, "Filled 1 of")
}

func TestHandleBulkMatch_UsesConfiguredMapper(t *testing.T) {
	ts := newTestServer(t)
	mapper := &fakeMapper{mappings: []match.FormKVMapping{{
		FieldID:    "f-email",
		FieldLabel: "Email Address",
		Value:      "jane@example.com",
	}}}

	srv, err := NewServer(ts.server.config, ts.server.indexer, ts.server.manifest,
		ts.server.sessions, nil, mapper)
	require.NoError(t, err)

	result, err := srv.handleBulkMatch(context.Background(), callRequest(map[string]any{
		"fields":   []any{map[string]any{"id": "f-email", "label": "Email Address"}},
		"rawInput": "use my personal email",
	}))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "jane@example.com")
	assert.Equal(t, "use my personal email", mapper.lastRawInput)
}

func TestHandleBulkMatch_MapperFailureFallsBackToQuery(t *testing.T) {
	ts := newTestServer(t)
	ts.writeDoc(t, "contact.txt", "Email: jane@example.com")

	_, err := ts.server.handleIndexFile(context.Background(), callRequest(map[string]any{"path": "contact.txt"}))
	require.NoError(t, err)

	srv, err := NewServer(ts.server.config, ts.server.indexer, ts.server.manifest,
		ts.server.sessions, nil, &fakeMapper{err: assert.AnError})
	require.NoError(t, err)

	result, err := srv.handleBulkMatch(context.Background(), callRequest(map[string]any{
		"fields": []any{map[string]any{"id": "f-email", "label": "Email Address"}},
	}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "Filled 1 of")
}

func TestHandleMarkFieldRejected_SuppressesBulkMatch(t *testing.T) {
	ts := newTestServer(t)
	ts.writeDoc(t, "contact.txt", "Email: jane@example.com")

	_, err := ts.server.handleIndexFile(context.Background(), callRequest(map[string]any{"path": "contact.txt"}))
	require.NoError(t, err)

	_, err = ts.server.handleEnsureSession(context.Background(), callRequest(map[string]any{
		"domain": "forms.example.com",
	}))
	require.NoError(t, err)

	args := map[string]any{
		"fields": []any{map[string]any{"id": "f-email", "label": "Email Address"}},
	}

	result, err := ts.server.handleBulkMatch(context.Background(), callRequest(args))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "Filled 1 of")

	result, err = ts.server.handleMarkFieldRejected(context.Background(), callRequest(map[string]any{
		"fieldId": "f-email",
	}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "f-email")

	// The rejected field stays out of subsequent bulk matches, including
	// ones answered from the mapping cache.
	result, err = ts.server.handleBulkMatch(context.Background(), callRequest(args))
	require.NoError(t, err)
	text := extractTextFromResult(result)
	assert.Contains(t, text, "Filled 0 of")
	assert.Contains(t, text, "Suppressed 1")
	assert.NotContains(t, text, "f-email")
}

func TestHandleBulkMatch_InvalidFields(t *testing.T) {
	ts := newTestServer(t)

	result, err := ts.server.handleBulkMatch(context.Background(), callRequest(map[string]any{
		"fields": "not-an-array",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = ts.server.handleBulkMatch(context.Background(), callRequest(map[string]any{
		"fields": []any{map[string]any{"id": "x"}}, // no label
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleSessionTools(t *testing.T) {
	ts := newTestServer(t)

	result, err := ts.server.handleEnsureSession(context.Background(), callRequest(map[string]any{
		"domain": "forms.example.com",
	}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "forms.example.com")

	result, err = ts.server.handleRecordNavigation(context.Background(), callRequest(map[string]any{
		"domain": "forms.example.com",
		"url":    "https://forms.example.com/step1",
	}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "step1")
}

func TestHandleMarkFieldUsed_WritesDocumentUsage(t *testing.T) {
	ts := newTestServer(t)
	ts.writeDoc(t, "w2.txt", "Employer: Acme Corp")

	_, err := ts.server.handleIndexFile(context.Background(), callRequest(map[string]any{"path": "w2.txt"}))
	require.NoError(t, err)

	_, err = ts.server.handleEnsureSession(context.Background(), callRequest(map[string]any{
		"domain": "example.com",
	}))
	require.NoError(t, err)

	result, err := ts.server.handleMarkFieldUsed(context.Background(), callRequest(map[string]any{
		"fieldId":    "f-employer",
		"fieldLabel": "Employer",
		"value":      "Acme Corp",
		"sourceFile": "w2.txt",
		"domain":     "example.com",
	}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "w2.txt")

	entry := ts.manifest.ReadManifest().FindEntry("w2.txt")
	require.NotNil(t, entry)
	doc, err := ts.manifest.ReadDocument(entry.IndexFile)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.UsedFields, 1)
	assert.Equal(t, "Acme Corp", doc.UsedFields[0].Value)
	assert.Equal(t, "example.com", doc.UsedFields[0].UsedOn)
	assert.NotEmpty(t, doc.UsedFields[0].SessionID)
}

func TestHandleServerInfo(t *testing.T) {
	ts := newTestServer(t)
	ts.writeDoc(t, "a.txt", "Name: Jane Doe")

	_, err := ts.server.handleIndexFile(context.Background(), callRequest(map[string]any{"path": "a.txt"}))
	require.NoError(t, err)

	result, err := ts.server.handleServerInfo(context.Background(), callRequest(nil))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "test-indexer")
	assert.Contains(t, text, ts.server.config.DocumentsDirectory)
	assert.Contains(t, text, "Indexed Files: 1")
	assert.Contains(t, text, "bulk_match")
}

func TestParseLiveFields(t *testing.T) {
	fields, err := parseLiveFields([]any{
		map[string]any{"id": "f1", "label": "Email"},
		map[string]any{"label": "Phone"}, // id defaults to the label
	})
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "f1", fields[0].ID)
	assert.Equal(t, "Phone", fields[1].ID)

	_, err = parseLiveFields(nil)
	assert.Error(t, err)
}
