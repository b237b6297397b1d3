package store

import (
	"fmt"
	"os"
	"time"
)

const (
	// ManifestFileName is the fixed name of the catalog blob.
	ManifestFileName = "manifest.json"

	// ManifestVersion is written into new manifests.
	ManifestVersion = 1

	// SearchIndexVersion is written into new search-index sidecars.
	SearchIndexVersion = 1
)

// ManifestStore reads and writes the manifest, document blobs, and
// search-index sidecars. It is the single writer of all three.
type ManifestStore struct {
	blob *Blob
}

// NewManifestStore creates a manifest store over the given blob store.
func NewManifestStore(blob *Blob) *ManifestStore {
	return &ManifestStore{blob: blob}
}

// Blob exposes the underlying blob store for callers that share it.
func (s *ManifestStore) Blob() *Blob {
	return s.blob
}

// ReadManifest returns the current manifest. An absent or unparsable
// manifest yields an empty, well-formed manifest rather than an error.
func (s *ManifestStore) ReadManifest() *Manifest {
	var m Manifest
	if err := s.blob.ReadJSON(ManifestFileName, &m); err != nil {
		return emptyManifest()
	}
	if m.Version == 0 || m.Documents == nil {
		// Tolerate hand-edited or truncated manifests.
		if m.Documents == nil {
			m.Documents = []ManifestEntry{}
		}
		if m.Version == 0 {
			m.Version = ManifestVersion
		}
	}
	return &m
}

// WriteManifest atomically replaces the whole manifest, stamping
// LastUpdated.
func (s *ManifestStore) WriteManifest(m *Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest cannot be nil")
	}
	m.LastUpdated = time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = m.LastUpdated
	}
	if m.Version == 0 {
		m.Version = ManifestVersion
	}
	return s.blob.WriteJSON(ManifestFileName, m)
}

// FindEntry returns the manifest entry for fileName, or nil.
func (m *Manifest) FindEntry(fileName string) *ManifestEntry {
	for i := range m.Documents {
		if m.Documents[i].FileName == fileName {
			return &m.Documents[i]
		}
	}
	return nil
}

// UpsertEntry replaces the entry with the same fileName in place, or
// appends when no entry exists yet. Entries are never duplicated.
func (m *Manifest) UpsertEntry(entry ManifestEntry) {
	for i := range m.Documents {
		if m.Documents[i].FileName == entry.FileName {
			m.Documents[i] = entry
			return
		}
	}
	m.Documents = append(m.Documents, entry)
}

// RemoveEntry drops the entry for fileName, reporting whether it existed.
func (m *Manifest) RemoveEntry(fileName string) bool {
	for i := range m.Documents {
		if m.Documents[i].FileName == fileName {
			m.Documents = append(m.Documents[:i], m.Documents[i+1:]...)
			return true
		}
	}
	return false
}

// ReadDocument loads a document blob. A missing blob returns (nil, nil);
// an unreadable or unparsable blob returns an error.
func (s *ManifestStore) ReadDocument(indexFile string) (*Document, error) {
	if !s.blob.Exists(indexFile) {
		return nil, nil
	}
	var doc Document
	if err := s.blob.ReadJSON(indexFile, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// WriteDocument atomically persists a document blob.
func (s *ManifestStore) WriteDocument(indexFile string, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}
	return s.blob.WriteJSON(indexFile, doc)
}

// ReadSearchIndex loads a search-index sidecar. Missing returns (nil, nil).
func (s *ManifestStore) ReadSearchIndex(name string) (*SearchIndexFile, error) {
	if name == "" || !s.blob.Exists(name) {
		return nil, nil
	}
	var idx SearchIndexFile
	if err := s.blob.ReadJSON(name, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// WriteSearchIndex atomically persists a search-index sidecar.
func (s *ManifestStore) WriteSearchIndex(name string, idx *SearchIndexFile) error {
	if idx == nil {
		return fmt.Errorf("search index cannot be nil")
	}
	return s.blob.WriteJSON(name, idx)
}

// ShouldReindex applies the skip decision for a candidate file:
// skip only when an entry exists, checksums match, the entry is not
// flagged needsReindex, and the backing index blob is still present.
// A manifest entry whose blob was externally deleted must not be skipped.
func (s *ManifestStore) ShouldReindex(m *Manifest, fileName, fileChecksum string) bool {
	entry := m.FindEntry(fileName)
	if entry == nil {
		return true
	}
	if entry.Checksum != fileChecksum {
		return true
	}
	if entry.NeedsReindex {
		return true
	}
	if !s.blob.Exists(entry.IndexFile) {
		return true
	}
	return false
}

// MarkNeedsReindex flags the entry for fileName and persists the manifest.
// Unknown files are a no-op.
func (s *ManifestStore) MarkNeedsReindex(fileName string) error {
	m := s.ReadManifest()
	entry := m.FindEntry(fileName)
	if entry == nil {
		return nil
	}
	if entry.NeedsReindex {
		return nil
	}
	entry.NeedsReindex = true
	return s.WriteManifest(m)
}

func emptyManifest() *Manifest {
	now := time.Now().UTC()
	return &Manifest{
		Version:     ManifestVersion,
		CreatedAt:   now,
		LastUpdated: now,
		Documents:   []ManifestEntry{},
	}
}

// FileExists reports whether a path exists as a regular file. Shared
// helper for callers checking source files before indexing.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
