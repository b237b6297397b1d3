package session

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/fillvault/mcp-doc-indexer/internal/match"
	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// CacheEntryVersion is written into persisted cache blobs.
const CacheEntryVersion = 1

// CachedMapping is the persisted shape of one field-mapping result,
// including the inputs that produced it for inspection and debugging.
type CachedMapping struct {
	Version         int                   `json:"version"`
	Signature       string                `json:"signature"`
	GeneratedAt     time.Time             `json:"generatedAt"`
	Documents       []string              `json:"documents"`
	RequestedFields []string              `json:"requestedFields"`
	RawInput        string                `json:"rawInput,omitempty"`
	Mappings        []match.FormKVMapping `json:"mappings"`
}

// MappingCache memoizes field-mapping results keyed by input signature,
// short-circuiting the expensive mapping step on identical requests.
type MappingCache struct {
	blob *store.Blob
}

// NewMappingCache creates a cache over the given blob store.
func NewMappingCache(blob *store.Blob) *MappingCache {
	return &MappingCache{blob: blob}
}

// Signature deterministically hashes the identity of a mapping request:
// the sorted document identity list (id, indexed time, file name), the
// sorted case-normalized field labels, and the case-normalized raw
// input. Changing any element changes the signature.
func Signature(docs []*store.Document, fieldLabels []string, rawInput string) string {
	docKeys := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		docKeys = append(docKeys, d.ID+"|"+d.IndexedAt.UTC().Format(time.RFC3339Nano)+"|"+d.FileName)
	}
	sort.Strings(docKeys)

	labels := make([]string, 0, len(fieldLabels))
	for _, l := range fieldLabels {
		labels = append(labels, strings.ToLower(strings.TrimSpace(l)))
	}
	sort.Strings(labels)

	payload := strings.Join(docKeys, "\n") + "\x00" +
		strings.Join(labels, "\n") + "\x00" +
		strings.ToLower(strings.TrimSpace(rawInput))

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Fetch returns the cached mappings for a signature, or (nil, false) on
// a miss. A miss is not an error; it just triggers recomputation.
func (c *MappingCache) Fetch(signature string) ([]match.FormKVMapping, bool) {
	name := signature + ".json"
	if !c.blob.Exists(name) {
		return nil, false
	}
	var entry CachedMapping
	if err := c.blob.ReadJSON(name, &entry); err != nil {
		return nil, false
	}
	if entry.Signature != signature {
		return nil, false
	}
	return entry.Mappings, true
}

// Store persists a mapping result under its signature together with the
// inputs that produced it.
func (c *MappingCache) Store(signature string, docs []*store.Document, fieldLabels []string, rawInput string, mappings []match.FormKVMapping) error {
	docNames := make([]string, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			docNames = append(docNames, d.FileName)
		}
	}
	sort.Strings(docNames)

	entry := CachedMapping{
		Version:         CacheEntryVersion,
		Signature:       signature,
		GeneratedAt:     time.Now().UTC(),
		Documents:       docNames,
		RequestedFields: fieldLabels,
		RawInput:        rawInput,
		Mappings:        mappings,
	}
	return c.blob.WriteJSON(signature+".json", &entry)
}
