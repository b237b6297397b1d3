package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// ErrMalformed marks a collaborator response that failed schema
// validation. Callers can treat it distinctly from transport errors.
var ErrMalformed = errors.New("malformed collaborator response")

// EntityBuckets is the closed set of entity bucket names the engine
// understands. Unknown buckets in a response are dropped, not coerced.
var EntityBuckets = []string{
	"numbers", "dates", "names", "addresses", "employers",
	"currencies", "identifiers", "emails", "phone_numbers",
}

// MaxFieldValueLen caps field values arriving from collaborators; longer
// values are paragraph noise, not fillable data.
const MaxFieldValueLen = 260

type entityResponse struct {
	Entities map[string][]string `json:"entities"`
	Summary  string              `json:"summary"`
}

type fieldResponse struct {
	Fields []store.FieldEntry `json:"fields"`
}

// DecodeEntityResponse validates a raw entity-extraction payload. Unknown
// buckets are discarded; entries are trimmed and empties removed. A
// response that is not an object with an entities map is ErrMalformed.
func DecodeEntityResponse(data []byte) (EntityResult, error) {
	var resp entityResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return EntityResult{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.Entities == nil {
		return EntityResult{}, fmt.Errorf("%w: missing entities object", ErrMalformed)
	}

	known := make(map[string]bool, len(EntityBuckets))
	for _, b := range EntityBuckets {
		known[b] = true
	}

	entities := make(map[string][]string)
	for bucket, values := range resp.Entities {
		if !known[bucket] {
			continue
		}
		var clean []string
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v != "" {
				clean = append(clean, v)
			}
		}
		if len(clean) > 0 {
			entities[bucket] = clean
		}
	}

	return EntityResult{Entities: entities, Summary: strings.TrimSpace(resp.Summary)}, nil
}

// DecodeFieldResponse validates a raw organize-fields payload. Entries
// with an empty label or value are dropped; over-long values are dropped
// rather than truncated so a partial value is never presented as whole.
func DecodeFieldResponse(data []byte) ([]store.FieldEntry, error) {
	var resp fieldResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.Fields == nil {
		return nil, fmt.Errorf("%w: missing fields array", ErrMalformed)
	}

	var fields []store.FieldEntry
	for _, f := range resp.Fields {
		f.Label = strings.TrimSpace(f.Label)
		f.Value = strings.TrimSpace(f.Value)
		if f.Label == "" || f.Value == "" {
			continue
		}
		if len(f.Value) > MaxFieldValueLen {
			continue
		}
		if f.Confidence == "" {
			f.Confidence = store.ConfidenceMedium
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// DecodeSearchIndexResponse validates a raw search-index payload. Items
// with an empty label or value are dropped. A payload carrying neither an
// items array nor an autofill map is ErrMalformed.
func DecodeSearchIndexResponse(data []byte) (*store.SearchIndexFile, error) {
	var idx store.SearchIndexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if idx.Items == nil && idx.Autofill == nil {
		return nil, fmt.Errorf("%w: missing items and autofill", ErrMalformed)
	}

	var items []store.SearchIndexItem
	for _, item := range idx.Items {
		item.FieldLabel = strings.TrimSpace(item.FieldLabel)
		item.Value = strings.TrimSpace(item.Value)
		if item.FieldLabel == "" || item.Value == "" {
			continue
		}
		items = append(items, item)
	}
	idx.Items = items
	return &idx, nil
}
