// Package classify assigns a coarse category to a personal document from
// its extracted text and file name, using weighted keyword and pattern
// rules. The category is advisory: it helps a host prioritize which
// documents to offer for a given form, nothing downstream depends on it
// being right.
package classify

import (
	"regexp"
	"strings"
)

// Category is the coarse kind of a personal document.
type Category string

const (
	CategoryTaxForm       Category = "tax-form"
	CategoryIdentity      Category = "identity"
	CategoryBankStatement Category = "bank-statement"
	CategoryPayStub       Category = "pay-stub"
	CategoryInvoice       Category = "invoice"
	CategoryInsurance     Category = "insurance"
	CategoryUtilityBill   Category = "utility-bill"
	CategoryResume        Category = "resume"
	CategoryOther         Category = "other"
)

// Scoring weights. Pattern hits outweigh keyword hits: a matched layout
// pattern ("Form W-2", an account-number line) is far stronger evidence
// than a single vocabulary word.
const (
	keywordScore  = 1.0
	patternScore  = 2.5
	fileNameScore = 3.0

	// minScore is the floor below which a document stays "other".
	minScore = 2.0
)

// Rule scores one category. Keywords match as substrings of the
// lowercased text; FileNameHints match against the lowercased file name.
type Rule struct {
	Category      Category
	Keywords      []string
	Patterns      []*regexp.Regexp
	FileNameHints []string
	Weight        float64
}

var defaultRules = []Rule{
	{
		Category: CategoryTaxForm,
		Keywords: []string{
			"wages", "withholding", "taxable income", "federal income tax",
			"employer identification number", "tax return", "irs", "fiscal year",
			"adjusted gross income", "dependents",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)form\s+(w-?2|w-?4|1040|1099)`),
			regexp.MustCompile(`(?i)tax\s+year\s+\d{4}`),
			regexp.MustCompile(`(?i)ein\s*:?\s*\d{2}-\d{7}`),
		},
		FileNameHints: []string{"w2", "w-2", "1099", "1040", "tax"},
		Weight:        1.0,
	},
	{
		Category: CategoryIdentity,
		Keywords: []string{
			"passport", "nationality", "place of birth", "date of issue",
			"date of expiry", "driver license", "driver's license",
			"identification card", "social security",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)passport\s+(no|number)`),
			regexp.MustCompile(`(?i)(dl|license)\s*(no|number|#)`),
			regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), // SSN layout
		},
		FileNameHints: []string{"passport", "license", "ssn", "id-card"},
		Weight:        1.0,
	},
	{
		Category: CategoryBankStatement,
		Keywords: []string{
			"account summary", "beginning balance", "ending balance",
			"deposits", "withdrawals", "routing number", "statement period",
			"available balance", "transaction",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)account\s*(no|number|#)\s*:?\s*[\dx*]{4,}`),
			regexp.MustCompile(`(?i)statement\s+period`),
		},
		FileNameHints: []string{"statement", "bank"},
		Weight:        1.0,
	},
	{
		Category: CategoryPayStub,
		Keywords: []string{
			"gross pay", "net pay", "pay period", "earnings", "deductions",
			"year to date", "ytd", "hourly rate", "overtime", "direct deposit",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)pay\s+(period|date)\s*:?`),
			regexp.MustCompile(`(?i)(gross|net)\s+pay\s*:?\s*\$?[\d,]+\.?\d*`),
		},
		FileNameHints: []string{"paystub", "pay-stub", "payslip", "payroll"},
		Weight:        1.0,
	},
	{
		Category: CategoryInvoice,
		Keywords: []string{
			"invoice", "bill to", "amount due", "payment terms", "subtotal",
			"remit", "due date", "purchase order",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)invoice\s*(no|number|#)?\s*:?\s*\d+`),
			regexp.MustCompile(`(?i)(total|amount)\s+due\s*:?\s*\$[\d,]+\.?\d*`),
		},
		FileNameHints: []string{"invoice", "bill"},
		Weight:        0.9,
	},
	{
		Category: CategoryInsurance,
		Keywords: []string{
			"policy number", "insured", "coverage", "premium", "deductible",
			"beneficiary", "claim", "policyholder", "effective date",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)policy\s*(no|number|#)\s*:?\s*\w+`),
		},
		FileNameHints: []string{"insurance", "policy"},
		Weight:        1.0,
	},
	{
		Category: CategoryUtilityBill,
		Keywords: []string{
			"utility", "electricity", "kwh", "water usage", "gas service",
			"meter reading", "service address", "billing period", "usage",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)meter\s+(no|number|reading)`),
			regexp.MustCompile(`(?i)service\s+address\s*:?`),
		},
		FileNameHints: []string{"utility", "electric", "water-bill"},
		Weight:        0.9,
	},
	{
		Category: CategoryResume,
		Keywords: []string{
			"curriculum vitae", "work experience", "education", "skills",
			"employment history", "qualifications", "certifications",
			"references", "objective",
		},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\d{4}\s*[-–]\s*(\d{4}|present)`),
			regexp.MustCompile(`(?i)(bachelor|master|ph\.?d)`),
		},
		FileNameHints: []string{"resume", "cv"},
		Weight:        0.8,
	},
}

// Categorize scores the text and file name against every rule and returns
// the best category, or "other" when nothing scores above the floor.
func Categorize(text, fileName string) Category {
	category, _ := CategorizeScored(text, fileName)
	return category
}

// CategorizeScored is Categorize with the winning score exposed, for
// hosts that want to surface classification strength.
func CategorizeScored(text, fileName string) (Category, float64) {
	lowerText := strings.ToLower(text)
	lowerName := strings.ToLower(fileName)

	best := CategoryOther
	bestScore := 0.0
	for _, rule := range defaultRules {
		score := 0.0
		for _, kw := range rule.Keywords {
			if strings.Contains(lowerText, kw) {
				score += keywordScore
			}
		}
		for _, p := range rule.Patterns {
			if p.MatchString(text) {
				score += patternScore
			}
		}
		for _, hint := range rule.FileNameHints {
			if strings.Contains(lowerName, hint) {
				score += fileNameScore
				break
			}
		}
		score *= rule.Weight

		if score > bestScore {
			bestScore = score
			best = rule.Category
		}
	}

	if bestScore < minScore {
		return CategoryOther, bestScore
	}
	return best, bestScore
}
