package descriptions

// Comprehensive tool descriptions with practical examples and use cases

const (
	// Indexing Tools
	IndexFileDescription = `Index a single personal document into the local searchable index.

**When to use:** A new or changed document (PDF, image, screenshot, or text file) should become available for form filling and search.

**Why it's useful:** Runs the full extraction pipeline (embedded text, OCR fallback, field organization, autofill key normalization) and persists the result, so later queries never re-read the original file.

**Examples:**
• Index a pay stub: "Index paystub-march.pdf so my employer details are available"
• Index an ID photo: "Index passport-photo.jpg to capture the passport number"
• Refresh a changed file: "Re-index w2-2024.pdf after the corrected copy arrived"

**Common workflows:**
1. Onboarding: Index documents → Verify status per file → Query for fields
2. Update: Replace file on disk → Index again → Unchanged files are skipped by checksum

**Best practices:** Indexing is incremental; re-running on unchanged files is cheap and safe.`

	IndexDirectoryDescription = `Index every supported document in the configured documents directory.

**When to use:** First-time setup, or whenever several files changed and you want the whole collection brought up to date in one call.

**Why it's useful:** Walks the directory once, skips unchanged files via checksums, and reports a per-file status (indexed, skipped, unsupported, too-large) instead of failing the whole run on one bad file.

**Examples:**
• Initial setup: "Index everything in my documents folder"
• Periodic refresh: "Re-scan the folder after adding this month's statements"

**Common workflows:**
1. Bulk onboarding: Index directory → Review per-file statuses → Fix or remove rejected files
2. Maintenance: Index directory on a schedule → Only changed files do real work

**Best practices:** Check the returned statuses; "too-large" and "unsupported" name the files that need attention.`

	// Query Tools
	QueryIndexDescription = `Find the best personal-data values for a form field label or free-text query.

**When to use:** A single form field needs a value, or you want to know which document holds a piece of information.

**Why it's useful:** Scores candidates across normalized autofill keys, organized field entries, and raw page text, so a match is found even when the document never used the form's exact wording.

**Examples:**
• Fill one field: "Query the index for 'Passport Number'"
• Locate a fact: "Which document mentions my routing number?"
• Disambiguate: "Query 'employer' and compare the top candidates"

**Common workflows:**
1. Single-field fill: Query label → Take top candidate → Mark field used
2. Verification: Query → Inspect source snippet and page → Confirm before filling

**Best practices:** Results are ranked; the source text snippet shows where each value came from.`

	BulkMatchDescription = `Match a whole set of form fields against indexed documents in one call.

**When to use:** A page presents many fields at once and each should get its best available value.

**Why it's useful:** Runs fuzzy label matching per field, skips fields with no confident candidate rather than guessing, and memoizes the result so an identical form on the same index returns instantly.

**Examples:**
• Application form: "Fill name, address, SSN, and employer fields from my documents"
• Checkout page: "Match the shipping address block against my indexed files"

**Common workflows:**
1. Form fill: Bulk match fields → Apply returned assignments → Record used fields
2. Gap analysis: Bulk match → Review skipped fields → Index the missing documents

**Best practices:** Skipped fields carry a reason (below-threshold or no-candidate); treat them as "don't fill", not as errors.`

	// Session Tools
	EnsureSessionDescription = `Start or continue a form-filling session for a website domain.

**When to use:** At the beginning of any form-filling interaction, and again whenever the active site changes.

**Why it's useful:** Sessions scope usage tracking and field suppression; switching domains rotates the session so one site's history never leaks into another's.

**Examples:**
• Session start: "Ensure a session for forms.example.com before filling"
• Site switch: "Moving to bank.example.org, ensure a fresh session"

**Best practices:** Idempotent per domain; call it freely.`

	RecordNavigationDescription = `Record a page visit in the current session's navigation history.

**When to use:** The user moves between pages of a multi-step form.

**Why it's useful:** Keeps an ordered trail of visited URLs for the session, deduplicating immediate repeats, so multi-page flows can be reconstructed later.

**Examples:**
• Multi-step form: "Record each step URL as the wizard advances"

**Best practices:** Call once per navigation; reloads of the same URL are collapsed automatically.`

	MarkFieldUsedDescription = `Record that a field value was actually applied, both in the session and in the source document.

**When to use:** Immediately after a value from the index was filled into a form.

**Why it's useful:** Suppresses repeat suggestions for the same field in this session and appends a usage record to the source document, building provenance for every fill.

**Examples:**
• After filling: "Mark the email field used with value from w2-2024.pdf"

**Common workflows:**
1. Fill loop: Query or bulk match → Apply value → Mark field used → Next field

**Best practices:** Include the source file name so the usage lands in the right document's history.`

	MarkFieldRejectedDescription = `Record that the user dismissed a suggested value for a form field.

**When to use:** The user cleared, ignored, or declined a suggestion for a specific field.

**Why it's useful:** The field stops appearing in bulk match results for the rest of the session, so a rejected value is never pushed twice.

**Examples:**
• After a dismissal: "The user cleared the suggested employer name; mark that field rejected"

**Common workflows:**
1. Fill loop: Bulk match → User declines a value → Mark field rejected → Re-run bulk match for the rest

**Best practices:** Use the same field identifier the bulk match reported so the suppression lands on the right field.`

	// Utility Tools
	ServerInfoDescription = `Get server status, configuration, and a summary of the current index.

**When to use:** Starting a session, troubleshooting missing documents, or checking what the index currently covers.

**Why it's useful:** Reports the documents and index directories, indexed file count, and available tools in one call.

**Examples:**
• Session startup: "Check server info to confirm the documents directory is right"
• Debugging: "Why is my file missing? Check server info for the scanned directory"

**Best practices:** Run at the start of sessions to confirm configuration before indexing.`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	"index_file":          IndexFileDescription,
	"index_directory":     IndexDirectoryDescription,
	"query_index":         QueryIndexDescription,
	"bulk_match":          BulkMatchDescription,
	"ensure_session":      EnsureSessionDescription,
	"record_navigation":   RecordNavigationDescription,
	"mark_field_used":     MarkFieldUsedDescription,
	"mark_field_rejected": MarkFieldRejectedDescription,
	"server_info":         ServerInfoDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a list of all available tool names
func GetAllToolNames() []string {
	var names []string
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	return names
}
