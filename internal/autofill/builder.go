package autofill

import (
	"strings"
	"time"

	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// MaxAutofillValueLen is the longest value admitted into the autofill
// map. Longer values still appear in the item list but make poor
// single-field fills.
const MaxAutofillValueLen = 240

// entityFallbacks maps canonical keys to the entity bucket consulted when
// no explicit field produced a value for that key.
var entityFallbacks = []struct {
	key    string
	bucket string
}{
	{"full_name", "names"},
	{"email_address", "emails"},
	{"phone_number", "phone_numbers"},
	{"street_address", "addresses"},
	{"date_of_birth", "dates"},
	{"passport_number", "identifiers"},
}

// NameParts is the result of splitting a full name.
type NameParts struct {
	First  string
	Middle string
	Last   string
}

// SplitName tokenizes a full name on whitespace. One token yields no
// split, two yield first/last, three or more join the interior tokens
// into the middle name.
func SplitName(full string) NameParts {
	tokens := strings.Fields(full)
	switch len(tokens) {
	case 0, 1:
		return NameParts{}
	case 2:
		return NameParts{First: tokens[0], Last: tokens[1]}
	default:
		return NameParts{
			First:  tokens[0],
			Middle: strings.Join(tokens[1:len(tokens)-1], " "),
			Last:   tokens[len(tokens)-1],
		}
	}
}

// Build constructs the search-index sidecar from extracted pages and
// entity buckets. Autofill writes are first-write-wins per canonical key;
// explicit fields always beat entity-bucket fallbacks because fallbacks
// run last and never overwrite.
func Build(pages []store.Page, entities map[string][]string) *store.SearchIndexFile {
	idx := &store.SearchIndexFile{
		Version:     store.SearchIndexVersion,
		GeneratedAt: time.Now().UTC(),
		Items:       []store.SearchIndexItem{},
		Autofill:    map[string]string{},
	}

	seen := map[string]bool{}
	for _, page := range pages {
		for _, field := range page.Fields {
			label := strings.TrimSpace(field.Label)
			value := strings.TrimSpace(field.Value)
			if label == "" || value == "" {
				continue
			}

			key := ClassifyLabel(label)
			setAutofill(idx.Autofill, key, value)
			if key == "full_name" {
				parts := SplitName(value)
				setAutofill(idx.Autofill, "first_name", parts.First)
				setAutofill(idx.Autofill, "middle_name", parts.Middle)
				setAutofill(idx.Autofill, "last_name", parts.Last)
			}

			dedupeKey := strings.ToLower(label) + "\x00" + strings.ToLower(value)
			if seen[dedupeKey] {
				continue
			}
			seen[dedupeKey] = true

			idx.Items = append(idx.Items, store.SearchIndexItem{
				FieldLabel: label,
				Value:      value,
				Aliases:    aliasSet(label, key),
				SourceText: field.BoundingContext,
				Confidence: field.Confidence,
			})
		}
	}

	for _, fb := range entityFallbacks {
		if _, ok := idx.Autofill[fb.key]; ok {
			continue
		}
		values := entities[fb.bucket]
		if len(values) == 0 {
			continue
		}
		setAutofill(idx.Autofill, fb.key, strings.TrimSpace(values[0]))
	}

	return idx
}

// setAutofill writes key=value unless the key is already set, the value
// is empty, or the value exceeds the autofill length cap.
func setAutofill(autofill map[string]string, key, value string) {
	if key == "" || value == "" || len(value) > MaxAutofillValueLen {
		return
	}
	if _, ok := autofill[key]; ok {
		return
	}
	autofill[key] = value
}

// aliasSet returns the union of the raw label and the canonical key's
// human-readable form, without duplicates.
func aliasSet(label, key string) []string {
	aliases := []string{label}
	human := Humanize(key)
	if !strings.EqualFold(human, label) {
		aliases = append(aliases, human)
	}
	return aliases
}

// Merge combines a base search index with an optional override. With no
// override the base is returned unchanged. Override autofill keys replace
// base keys; base-only keys are preserved. Items concatenate override
// before base and dedupe by (label, value) case-insensitively, keeping
// the first occurrence so override duplicates win. Items with an empty
// label or value are skipped.
func Merge(base, override *store.SearchIndexFile) *store.SearchIndexFile {
	if override == nil {
		return base
	}
	if base == nil {
		base = &store.SearchIndexFile{
			Version:  store.SearchIndexVersion,
			Items:    []store.SearchIndexItem{},
			Autofill: map[string]string{},
		}
	}

	merged := &store.SearchIndexFile{
		Version:     base.Version,
		GeneratedAt: time.Now().UTC(),
		Items:       []store.SearchIndexItem{},
		Autofill:    map[string]string{},
	}
	if merged.Version == 0 {
		merged.Version = store.SearchIndexVersion
	}

	for k, v := range base.Autofill {
		merged.Autofill[k] = v
	}
	for k, v := range override.Autofill {
		merged.Autofill[k] = v
	}

	seen := map[string]bool{}
	for _, item := range append(append([]store.SearchIndexItem{}, override.Items...), base.Items...) {
		if item.FieldLabel == "" || item.Value == "" {
			continue
		}
		key := strings.ToLower(item.FieldLabel) + "\x00" + strings.ToLower(item.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged.Items = append(merged.Items, item)
	}

	return merged
}
