package descriptions

// Tool descriptions shown to MCP clients, with the workflow each tool fits into

const (
	// File and mapping tools
	ValidateFileDescription = `Check that a file is a readable PDF and report its page count and AcroForm.

**When to use:** Before extraction or a validation session, to catch a wrong path, a truncated export or a PDF that was flattened and lost its form.

**Examples:**
• "Is exports/sf86-filled.pdf readable?"
• "How many pages does the regenerated SF-86 have?"

**Best practices:** A valid PDF without an AcroForm extracts zero fields on every page; regenerate it before validating.`

	MapFieldDescription = `Look up a field mapping in either direction.

**When to use:** To find which AcroForm field a form-data path is written to, or which form-data path a PDF field comes from.

**Examples:**
• uiPath "section13.federalEmployment.entries[0].supervisorName" → form1[0].section_13_1-2[0].TextField11[0]
• pdfFieldId "form1[0].Sections7-9[0].TextField11[3]" → its form-data path

**Best practices:** Pass exactly one of uiPath and pdfFieldId. A miss is reported as found=false, not as an error. Legacy field IDs resolve to the path of the entry that replaced them.`

	PageMappingsDescription = `List every field mapping declared for a PDF page, in declaration order.

**When to use:** To see what a page is expected to carry before validating it, or to debug a page that stays below 100%.

**Examples:**
• "Which fields are mapped on page 17?"`

	ExtractPageDescription = `Extract the AcroForm fields whose widgets sit on one page, with values and mapping status.

**When to use:** To inspect what actually landed in the PDF on a page: typed values, empty fields, fields the mapping table does not know.

**Examples:**
• "Extract page 17 of exports/sf86-filled.pdf"

**Common workflows:**
1. Extract page → spot unmapped fields → add mappings
2. Extract page → compare with sf86_page_mappings → find fields that never get filled

**Best practices:** Field read problems are reported as warnings with a null value; they do not fail the page.`

	CheckCoverageDescription = `Check one page of a filled PDF against the form data that produced it.

**When to use:** One-off verification of a page without opening a session.

**Examples:**
• "Check page 17 of exports/sf86-filled.pdf against data/applicant.json"
• "Same, but only count values mapped to page 17" (scope_to_page=true)

**Best practices:** Coverage counts distinct non-blank form-data values found in any field on the page, by equality or containment. Without scope_to_page the whole form-data tree is expected on the page, so coverage is only meaningful for single-page data.`

	AuditSectionDescription = `Compare a section's mapping entries against a reference field inventory of the blank form.

**When to use:** To find SF-86 fields a section never maps, and mappings that point at fields the form does not have.

**Examples:**
• "Audit section 9 against reference/section-9.json"

**Best practices:** Results are grouped by subform so a missing repeating block stands out.`

	// Session tools
	SessionStartDescription = `Open a page-by-page validation session over a PDF and its form data.

**When to use:** To walk the form page by page, only moving on once each page reaches 100% coverage.

**Common workflows:**
1. sf86_session_start → sf86_session_validate → sf86_session_advance → repeat
2. Fix the generator, regenerate the PDF → sf86_session_start again or reload → revalidate

**Best practices:** Keep the returned session_id; every other session tool needs it.`

	SessionValidateDescription = `Validate a page of an open session and record the result in its manifest.

**When to use:** After starting a session or after advancing to a new page.

**Best practices:** Omit page to validate the current page. A document error is recorded on the page with 0% coverage; validate again after fixing the PDF.`

	SessionAdvanceDescription = `Move an open session to the next page.

**When to use:** After the current page validated at 100% coverage.

**Best practices:** Advancing from a page below 100% is refused with "must reach 100% coverage"; this is a normal result, not a failure.`

	SessionRetreatDescription = `Move an open session back one page. Recorded results are kept.`

	SessionManifestDescription = `Show an open session's summary and per-page manifest: status, coverage, field counts and errors.

**When to use:** To review progress or to collect the final report of a session.`

	SessionReloadDescription = `Point an open session at a regenerated PDF and, optionally, new form data.

**When to use:** After fixing the PDF generator, to revalidate pages without losing the results recorded so far.

**Best practices:** Reloading does not revalidate anything; call sf86_session_validate on the pages you want refreshed.`
)
