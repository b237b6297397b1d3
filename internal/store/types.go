// Package store owns the persisted shapes of the index: the manifest, the
// per-document index blobs, and the search-index sidecars. Field names on
// the JSON-tagged structs are load-bearing for on-disk compatibility.
package store

import "time"

// DocumentType classifies the source file of an indexed document.
type DocumentType string

const (
	DocumentTypePDF        DocumentType = "pdf"
	DocumentTypeImage      DocumentType = "image"
	DocumentTypeText       DocumentType = "text"
	DocumentTypeScreenshot DocumentType = "screenshot"
)

// Confidence grades an extracted field value.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// FieldEntry is a single (label, value) pair extracted from a page.
type FieldEntry struct {
	Label           string     `json:"label"`
	Value           string     `json:"value"`
	Confidence      Confidence `json:"confidence"`
	BoundingContext string     `json:"boundingContext,omitempty"`
}

// Page holds the text and extracted fields of one document page.
type Page struct {
	PageNumber int          `json:"pageNumber"`
	RawText    string       `json:"rawText"`
	Fields     []FieldEntry `json:"fields,omitempty"`
}

// UsedField records that a value from this document was filled into a form
// on some domain. The list on a Document is append-only.
type UsedField struct {
	FieldLabel string    `json:"fieldLabel"`
	Value      string    `json:"value"`
	UsedOn     string    `json:"usedOn"`
	UsedAt     time.Time `json:"usedAt"`
	SessionID  string    `json:"sessionId"`
}

// SearchIndexItem is one deduplicated (label, value) candidate with its
// aliases. Uniqueness key is (fieldLabel, value), case-insensitive.
type SearchIndexItem struct {
	FieldLabel string     `json:"fieldLabel"`
	Value      string     `json:"value"`
	Aliases    []string   `json:"aliases,omitempty"`
	SourceText string     `json:"sourceText,omitempty"`
	Confidence Confidence `json:"confidence,omitempty"`
}

// SearchIndexFile is the queryable sidecar built from a document's fields
// and entities: a flat item list plus a canonical-key autofill map.
type SearchIndexFile struct {
	Version     int               `json:"version"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Items       []SearchIndexItem `json:"items"`
	Autofill    map[string]string `json:"autofill"`
}

// Document is the full indexed representation of one source file. It is
// owned by the manifest store; ID is immutable once assigned, content may
// be replaced wholesale on reindex.
type Document struct {
	ID          string              `json:"id"`
	FileName    string              `json:"fileName"`
	Type        DocumentType        `json:"type"`
	IndexedAt   time.Time           `json:"indexedAt"`
	Language    string              `json:"language,omitempty"`
	Category    string              `json:"category,omitempty"`
	PageCount   int                 `json:"pageCount"`
	Pages       []Page              `json:"pages"`
	RawText     string              `json:"rawText,omitempty"`
	CleanText   string              `json:"cleanText,omitempty"`
	Entities    map[string][]string `json:"entities,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	SearchIndex *SearchIndexFile    `json:"searchIndex,omitempty"`
	UsedFields  []UsedField         `json:"usedFields,omitempty"`
}

// ManifestEntry is the catalog record for one indexed file. Unique by
// FileName within a Manifest.
type ManifestEntry struct {
	ID              string       `json:"id"`
	FileName        string       `json:"fileName"`
	Type            DocumentType `json:"type"`
	IndexFile       string       `json:"indexFile"`
	Checksum        string       `json:"checksum"`
	SizeBytes       int64        `json:"sizeBytes"`
	IndexedAt       time.Time    `json:"indexedAt"`
	Language        string       `json:"language,omitempty"`
	Category        string       `json:"category,omitempty"`
	LLMPrepared     bool         `json:"llmPrepared"`
	NeedsReindex    bool         `json:"needsReindex"`
	SearchIndexFile string       `json:"searchIndexFile,omitempty"`
}

// Manifest is the catalog of all indexed documents. Single logical owner,
// read-modify-write-whole-file semantics.
type Manifest struct {
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Documents   []ManifestEntry `json:"documents"`
}

// WorkingText returns the best available text of the document: the cleaned
// text when extraction ran, otherwise the retained raw text, otherwise the
// concatenated page text.
func (d *Document) WorkingText() string {
	if d.CleanText != "" {
		return d.CleanText
	}
	if d.RawText != "" {
		return d.RawText
	}
	var out string
	for _, p := range d.Pages {
		if p.RawText == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += p.RawText
	}
	return out
}
