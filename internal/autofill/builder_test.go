package autofill

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		in   string
		want NameParts
	}{
		{"Cher", NameParts{}},
		{"Jane Doe", NameParts{First: "Jane", Last: "Doe"}},
		{"John Michael Doe", NameParts{First: "John", Middle: "Michael", Last: "Doe"}},
		{"Ana Maria de la Cruz", NameParts{First: "Ana", Middle: "Maria de la", Last: "Cruz"}},
		{"", NameParts{}},
		{"   ", NameParts{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitName(tt.in))
		})
	}
}

func pagesWithFields(fields ...store.FieldEntry) []store.Page {
	return []store.Page{{PageNumber: 1, RawText: "raw", Fields: fields}}
}

func TestBuild_AutofillFromExplicitFields(t *testing.T) {
	idx := Build(pagesWithFields(
		store.FieldEntry{Label: "Email Address", Value: "a@b.com", Confidence: store.ConfidenceHigh},
		store.FieldEntry{Label: "Full Name", Value: "John Michael Doe"},
	), nil)

	assert.Equal(t, "a@b.com", idx.Autofill["email_address"])
	assert.Equal(t, "John Michael Doe", idx.Autofill["full_name"])
	// Name split populates the component keys.
	assert.Equal(t, "John", idx.Autofill["first_name"])
	assert.Equal(t, "Michael", idx.Autofill["middle_name"])
	assert.Equal(t, "Doe", idx.Autofill["last_name"])
}

func TestBuild_FirstWriteWins(t *testing.T) {
	idx := Build(pagesWithFields(
		store.FieldEntry{Label: "Email", Value: "first@x.com"},
		store.FieldEntry{Label: "Email Address", Value: "second@x.com"},
	), nil)

	assert.Equal(t, "first@x.com", idx.Autofill["email_address"])
	// Both still appear as items.
	assert.Len(t, idx.Items, 2)
}

func TestBuild_LongValuesExcludedFromAutofill(t *testing.T) {
	long := strings.Repeat("a", MaxAutofillValueLen+1)
	idx := Build(pagesWithFields(
		store.FieldEntry{Label: "Notes Field", Value: long},
	), nil)

	assert.NotContains(t, idx.Autofill, "notes_field")
	require.Len(t, idx.Items, 1)
	assert.Equal(t, long, idx.Items[0].Value)
}

func TestBuild_EntityFallbackNeverOverwrites(t *testing.T) {
	entities := map[string][]string{
		"names":  {"Fallback Person"},
		"emails": {"fallback@x.com"},
		"dates":  {"1990-01-02"},
	}

	idx := Build(pagesWithFields(
		store.FieldEntry{Label: "Full Name", Value: "Jane Doe"},
	), entities)

	// Explicit field wins over the names bucket.
	assert.Equal(t, "Jane Doe", idx.Autofill["full_name"])
	// Absent keys fall back to the first bucket entry.
	assert.Equal(t, "fallback@x.com", idx.Autofill["email_address"])
	assert.Equal(t, "1990-01-02", idx.Autofill["date_of_birth"])
}

func TestBuild_ItemDedupCaseInsensitive(t *testing.T) {
	idx := Build(pagesWithFields(
		store.FieldEntry{Label: "Email", Value: "A@B.COM"},
		store.FieldEntry{Label: "email", Value: "a@b.com"},
	), nil)

	assert.Len(t, idx.Items, 1)
}

func TestBuild_AliasesIncludeHumanizedKey(t *testing.T) {
	idx := Build(pagesWithFields(
		store.FieldEntry{Label: "DOB", Value: "1990-01-02"},
	), nil)

	require.Len(t, idx.Items, 1)
	assert.Contains(t, idx.Items[0].Aliases, "DOB")
	assert.Contains(t, idx.Items[0].Aliases, "Date Of Birth")
}

func TestMerge_NilOverrideReturnsBase(t *testing.T) {
	base := Build(pagesWithFields(store.FieldEntry{Label: "Email", Value: "a@b.com"}), nil)
	assert.Same(t, base, Merge(base, nil))
}

func TestMerge_OverrideWins(t *testing.T) {
	base := &store.SearchIndexFile{
		Version:  store.SearchIndexVersion,
		Autofill: map[string]string{"email_address": "base@x.com", "city": "Basel"},
		Items: []store.SearchIndexItem{
			{FieldLabel: "Email", Value: "base@x.com", SourceText: "base source"},
			{FieldLabel: "City", Value: "Basel"},
		},
	}
	override := &store.SearchIndexFile{
		Version:  store.SearchIndexVersion,
		Autofill: map[string]string{"email_address": "override@x.com"},
		Items: []store.SearchIndexItem{
			{FieldLabel: "Email", Value: "base@x.com", SourceText: "override source"},
			{FieldLabel: "", Value: "orphan"},
		},
	}

	merged := Merge(base, override)

	// Override autofill replaces, base-only keys survive.
	assert.Equal(t, "override@x.com", merged.Autofill["email_address"])
	assert.Equal(t, "Basel", merged.Autofill["city"])

	// Duplicate (Email, base@x.com): override occurrence kept.
	require.Len(t, merged.Items, 2)
	assert.Equal(t, "override source", merged.Items[0].SourceText)
	assert.Equal(t, "City", merged.Items[1].FieldLabel)
}
