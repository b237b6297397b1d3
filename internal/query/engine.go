// Package query implements the scoring-based field-label lookup over
// indexed documents. Query is pure: identical inputs always produce
// identical ranked output, which the result cache relies on.
package query

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fillvault/mcp-doc-indexer/internal/autofill"
	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// Candidate is one ranked value suggestion for a queried field label.
type Candidate struct {
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName"`
	SourcePage int    `json:"sourcePage,omitempty"`
	SourceText string `json:"sourceText"`
	Score      int    `json:"score"`
}

// Tier score offsets and weights. The autofill tier carries a fixed
// offset so it never ranks below the other tiers for equal term overlap.
const (
	autofillTierOffset = 10

	autofillKeyWeight   = 4
	autofillValueWeight = 2

	itemLabelWeight = 3
	itemValueWeight = 2
	itemAliasWeight = 1

	entityBucketBonus = 2

	snippetBefore = 90
	snippetAfter  = 130
)

// stopWords are dropped from query tokens: articles, prepositions, and
// pronouns carry no field identity.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true,
	"of": true, "for": true, "to": true, "in": true, "on": true,
	"at": true, "by": true, "with": true, "from": true, "as": true,
	"is": true, "are": true, "be": true, "and": true, "or": true,
	"your": true, "my": true, "his": true, "her": true, "their": true,
	"our": true, "its": true, "you": true, "it": true, "this": true,
	"that": true, "please": true, "enter": true,
}

// bucketTriggers routes query keywords to entity buckets for the
// raw-text tier.
var bucketTriggers = []struct {
	keywords []string
	bucket   string
}{
	{[]string{"passport", "ssn", "id", "license", "licence"}, "identifiers"},
	{[]string{"name", "first", "last", "middle"}, "names"},
	{[]string{"address", "city", "state", "zip", "street"}, "addresses"},
	{[]string{"date", "dob", "birth"}, "dates"},
	{[]string{"employer", "company"}, "employers"},
	{[]string{"income", "wage", "salary", "tax"}, "currencies"},
	{[]string{"number", "reference", "account"}, "numbers"},
	{[]string{"email", "mail"}, "emails"},
	{[]string{"phone", "mobile", "cell"}, "phone_numbers"},
}

// Tokenize lowercases the label, maps non-alphanumerics to spaces, splits
// on whitespace, and drops stop words.
func Tokenize(label string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if !stopWords[tok] {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Query returns up to maxCandidates ranked value suggestions for a field
// label across the given documents. Ties keep discovery order.
func Query(fieldLabel string, docs []*store.Document, maxCandidates int) []Candidate {
	tokens := Tokenize(fieldLabel)
	if len(tokens) == 0 {
		return []Candidate{}
	}

	var candidates []Candidate
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		candidates = append(candidates, autofillTier(tokens, doc)...)
		candidates = append(candidates, itemTier(tokens, doc)...)
		candidates = append(candidates, rawTextTier(tokens, doc)...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if maxCandidates > 0 && len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	if candidates == nil {
		candidates = []Candidate{}
	}
	return candidates
}

func autofillTier(tokens []string, doc *store.Document) []Candidate {
	if doc.SearchIndex == nil || len(doc.SearchIndex.Autofill) == 0 {
		return nil
	}

	// Deterministic iteration over the map.
	keys := make([]string, 0, len(doc.SearchIndex.Autofill))
	for k := range doc.SearchIndex.Autofill {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Candidate
	for _, key := range keys {
		value := doc.SearchIndex.Autofill[key]
		human := strings.ToLower(autofill.Humanize(key))
		lowerValue := strings.ToLower(value)

		score := autofillKeyWeight*countHits(tokens, human) +
			autofillValueWeight*countHits(tokens, lowerValue)
		if score == 0 {
			continue
		}
		out = append(out, Candidate{
			DocumentID: doc.ID,
			FileName:   doc.FileName,
			SourceText: value,
			Score:      score + autofillTierOffset,
		})
	}
	return out
}

func itemTier(tokens []string, doc *store.Document) []Candidate {
	if doc.SearchIndex == nil {
		return nil
	}

	var out []Candidate
	for _, item := range doc.SearchIndex.Items {
		label := strings.ToLower(item.FieldLabel)
		value := strings.ToLower(item.Value)

		score := itemLabelWeight*countHits(tokens, label) +
			itemValueWeight*countHits(tokens, value)

		// Each distinct token found in any alias counts once, parallel to
		// the label and value terms.
		aliasHits := 0
		for _, tok := range tokens {
			for _, alias := range item.Aliases {
				if strings.Contains(strings.ToLower(alias), tok) {
					aliasHits++
					break
				}
			}
		}
		score += itemAliasWeight * aliasHits
		if score == 0 {
			continue
		}

		snippet := item.SourceText
		if snippet == "" {
			snippet = item.Value
		}
		out = append(out, Candidate{
			DocumentID: doc.ID,
			FileName:   doc.FileName,
			SourceText: snippet,
			Score:      score,
		})
	}
	return out
}

func rawTextTier(tokens []string, doc *store.Document) []Candidate {
	var out []Candidate

	// Entity-bucket boosted matches.
	if len(doc.Entities) > 0 {
		for _, trigger := range bucketTriggers {
			if !anyTokenIn(tokens, trigger.keywords) {
				continue
			}
			for _, value := range doc.Entities[trigger.bucket] {
				score := countHits(tokens, strings.ToLower(value)) + entityBucketBonus
				if score <= entityBucketBonus {
					continue
				}
				out = append(out, Candidate{
					DocumentID: doc.ID,
					FileName:   doc.FileName,
					SourceText: value,
					Score:      score,
				})
			}
		}
	}

	// Plain raw-text scan, no bucket bonus.
	for _, page := range doc.Pages {
		if page.RawText == "" {
			continue
		}
		lower := strings.ToLower(page.RawText)
		hits := 0
		firstHit := -1
		for _, tok := range tokens {
			idx := strings.Index(lower, tok)
			if idx < 0 {
				continue
			}
			hits++
			if firstHit < 0 || idx < firstHit {
				firstHit = idx
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, Candidate{
			DocumentID: doc.ID,
			FileName:   doc.FileName,
			SourcePage: page.PageNumber,
			SourceText: snippetAround(page.RawText, firstHit),
			Score:      hits,
		})
	}
	return out
}

// countHits counts query tokens that appear as substrings of text.
func countHits(tokens []string, text string) int {
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			hits++
		}
	}
	return hits
}

func anyTokenIn(tokens, keywords []string) bool {
	for _, tok := range tokens {
		for _, kw := range keywords {
			if tok == kw {
				return true
			}
		}
	}
	return false
}

// snippetAround extracts a window around the first hit, bounded to the
// document text. Window edges are snapped to rune boundaries so the
// snippet never ends in a split multibyte character.
func snippetAround(text string, hit int) string {
	start := hit - snippetBefore
	if start < 0 {
		start = 0
	}
	end := hit + snippetAfter
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return strings.TrimSpace(text[start:end])
}
