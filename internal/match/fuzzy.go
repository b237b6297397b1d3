// Package match assigns extracted (label, value) mappings onto live form
// fields by label similarity.
package match

import (
	"strings"

	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// Threshold is the strict lower bound a similarity score must exceed for
// a mapping to be applied. Exactly 0.35 is rejected: at that level the
// match is ambiguous.
const Threshold = 0.35

// Similarity scores for the two short-circuit cases.
const (
	exactScore       = 1.0
	containmentScore = 0.85
)

// FormKVMapping is one resolved field/value pair produced by the mapping
// collaborator and cached between requests.
type FormKVMapping struct {
	FieldID    string           `json:"fieldId"`
	FieldLabel string           `json:"fieldLabel"`
	Value      string           `json:"value"`
	SourceFile string           `json:"sourceFile,omitempty"`
	SourceText string           `json:"sourceText,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Confidence store.Confidence `json:"confidence,omitempty"`
}

// LiveField describes one observable field on the live form.
type LiveField struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Skip reasons reported for mappings that were not applied.
const (
	SkipBelowThreshold = "below-threshold"
	SkipNoCandidate    = "no-candidate"
)

// Assignment records one applied mapping.
type Assignment struct {
	FieldID    string  `json:"fieldId"`
	FieldLabel string  `json:"fieldLabel"`
	Value      string  `json:"value"`
	Score      float64 `json:"score"`
}

// SkippedField records one mapping that could not be applied and why.
type SkippedField struct {
	FieldLabel string `json:"fieldLabel"`
	Reason     string `json:"reason"`
}

// BulkResult reconciles a bulk-fill request: every requested mapping is
// either in Assignments or in Skipped.
type BulkResult struct {
	Filled      int            `json:"filled"`
	Requested   int            `json:"requested"`
	Assignments []Assignment   `json:"assignments"`
	Skipped     []SkippedField `json:"skipped"`
}

// BulkMatch greedily picks the best live field for each mapping. A live
// field may be selected by more than one mapping; hosts that need
// one-field-per-mapping exclusivity can dedupe by FieldID.
func BulkMatch(mappings []FormKVMapping, fields []LiveField) BulkResult {
	result := BulkResult{
		Requested:   len(mappings),
		Assignments: []Assignment{},
		Skipped:     []SkippedField{},
	}

	for _, m := range mappings {
		if len(fields) == 0 {
			result.Skipped = append(result.Skipped, SkippedField{
				FieldLabel: m.FieldLabel,
				Reason:     SkipNoCandidate,
			})
			continue
		}

		best := -1
		bestScore := 0.0
		for i, f := range fields {
			score := Similarity(m.FieldLabel, f.Label)
			if score > bestScore {
				bestScore = score
				best = i
			}
		}

		if best < 0 || bestScore <= Threshold {
			result.Skipped = append(result.Skipped, SkippedField{
				FieldLabel: m.FieldLabel,
				Reason:     SkipBelowThreshold,
			})
			continue
		}

		result.Assignments = append(result.Assignments, Assignment{
			FieldID:    fields[best].ID,
			FieldLabel: m.FieldLabel,
			Value:      m.Value,
			Score:      bestScore,
		})
		result.Filled++
	}

	return result
}

// Similarity compares two labels after normalization. Exact match scores
// 1.0, containment either direction 0.85, otherwise word-overlap Jaccard
// (0 when either side is empty).
func Similarity(a, b string) float64 {
	na := normalizeLabel(a)
	nb := normalizeLabel(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return exactScore
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return containmentScore
	}

	wordsA := strings.Fields(na)
	wordsB := strings.Fields(nb)
	union := map[string]bool{}
	setA := map[string]bool{}
	for _, w := range wordsA {
		setA[w] = true
		union[w] = true
	}
	shared := 0
	seenB := map[string]bool{}
	for _, w := range wordsB {
		if seenB[w] {
			continue
		}
		seenB[w] = true
		union[w] = true
		if setA[w] {
			shared++
		}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(shared) / float64(len(union))
}

// normalizeLabel lowercases, maps non-alphanumerics to spaces, and
// collapses runs of whitespace.
func normalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
