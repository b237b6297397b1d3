// Package autofill turns raw extracted (label, value) pairs into a
// canonical autofill map plus a deduplicated, alias-bearing item list.
package autofill

import (
	"strings"
	"unicode"
)

// CanonicalRule maps raw field labels onto a canonical autofill key. A
// rule matches when every keyword group has at least one case-insensitive
// substring hit in the label. Rules are evaluated top to bottom; the
// first match wins, so more specific rules must precede broader ones.
type CanonicalRule struct {
	CanonicalKey string
	Groups       [][]string
}

// Matches reports whether the rule applies to the given label.
func (r CanonicalRule) Matches(label string) bool {
	lower := strings.ToLower(label)
	for _, group := range r.Groups {
		hit := false
		for _, kw := range group {
			if strings.Contains(lower, kw) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return len(r.Groups) > 0
}

// defaultRules is the ordered classification table. Compound rules
// (license + number) come before the single-keyword rules they overlap.
var defaultRules = []CanonicalRule{
	{CanonicalKey: "driver_license_number", Groups: [][]string{
		{"driver", "license", "licence", "dl "},
		{"number", "no.", "no ", "#"},
	}},
	{CanonicalKey: "passport_number", Groups: [][]string{{"passport"}}},
	{CanonicalKey: "social_security_number", Groups: [][]string{{"social security", "ssn"}}},
	{CanonicalKey: "tax_id", Groups: [][]string{{"tax"}, {"id", "number"}}},
	{CanonicalKey: "bank_account_number", Groups: [][]string{{"account"}, {"number", "no.", "#"}}},
	{CanonicalKey: "routing_number", Groups: [][]string{{"routing"}}},
	{CanonicalKey: "date_of_birth", Groups: [][]string{{"dob", "date of birth", "birth date", "birthdate", "born"}}},
	{CanonicalKey: "email_address", Groups: [][]string{{"email", "e-mail"}}},
	{CanonicalKey: "phone_number", Groups: [][]string{{"phone", "mobile", "cell", "telephone"}}},
	{CanonicalKey: "first_name", Groups: [][]string{{"first name", "given name", "forename", "fname"}}},
	{CanonicalKey: "middle_name", Groups: [][]string{{"middle name", "middle initial"}}},
	{CanonicalKey: "last_name", Groups: [][]string{{"last name", "surname", "family name", "lname"}}},
	{CanonicalKey: "street_address", Groups: [][]string{{"street", "address line 1", "address1", "mailing address", "home address", "address"}}},
	{CanonicalKey: "city", Groups: [][]string{{"city", "town"}}},
	{CanonicalKey: "state", Groups: [][]string{{"state", "province"}}},
	{CanonicalKey: "zip_code", Groups: [][]string{{"zip", "postal"}}},
	{CanonicalKey: "country", Groups: [][]string{{"country"}}},
	{CanonicalKey: "employer_name", Groups: [][]string{{"employer", "company", "organization", "organisation"}}},
	{CanonicalKey: "job_title", Groups: [][]string{{"job title", "occupation", "position", "title"}}},
	{CanonicalKey: "annual_income", Groups: [][]string{{"income", "salary", "wage", "wages", "earnings"}}},
	{CanonicalKey: "nationality", Groups: [][]string{{"nationality", "citizenship"}}},
	{CanonicalKey: "gender", Groups: [][]string{{"gender", "sex"}}},
	{CanonicalKey: "marital_status", Groups: [][]string{{"marital"}}},
	// Bare "name" sweeps up anything the specific name rules above missed,
	// so it must stay at the bottom of the table.
	{CanonicalKey: "full_name", Groups: [][]string{{"full name", "applicant name", "name"}}},
}

// ClassifyLabel returns the canonical key for a raw label. Labels no rule
// claims fall back to a slug of the raw label so they still participate
// in autofill.
func ClassifyLabel(label string) string {
	for _, rule := range defaultRules {
		if rule.Matches(label) {
			return rule.CanonicalKey
		}
	}
	return Slugify(label)
}

// Slugify lowercases a label and collapses every non-alphanumeric run
// into a single underscore.
func Slugify(label string) string {
	var b strings.Builder
	lastUnderscore := true // suppress leading underscore
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Humanize renders a canonical key as a display label, e.g.
// "first_name" -> "First Name".
func Humanize(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
