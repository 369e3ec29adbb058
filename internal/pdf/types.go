package pdf

import (
	"github.com/a3tai/sf86-validator/internal/coverage"
	"github.com/a3tai/sf86-validator/internal/mapping"
	"github.com/a3tai/sf86-validator/internal/pdf/extraction"
	"github.com/a3tai/sf86-validator/internal/validation"
)

// Request Types

// ValidateFileRequest represents a request to check that a file is a readable PDF
type ValidateFileRequest struct {
	Path string `json:"path" validate:"required"`
}

// MapFieldRequest looks a mapping up in either direction. Exactly one of
// UIPath and PDFFieldID is expected.
type MapFieldRequest struct {
	UIPath     string `json:"uiPath" form:"uiPath"`
	PDFFieldID string `json:"pdfFieldId" form:"pdfFieldId"`
}

// PageMappingsRequest lists the mapping entries declared for a page
type PageMappingsRequest struct {
	Page int `json:"page" validate:"min=1"`
}

// ExtractPageRequest extracts the AcroForm fields of one page
type ExtractPageRequest struct {
	Path string `json:"path" validate:"required"`
	Page int    `json:"page" validate:"min=1"`
}

// FormDataSource names form data either by file or inline. Inline data wins.
type FormDataSource struct {
	FormDataPath string         `json:"formDataPath,omitempty"`
	FormData     map[string]any `json:"formData,omitempty"`
}

// CoverageRequest checks one page of a PDF against form data
type CoverageRequest struct {
	FormDataSource
	Path        string `json:"path" validate:"required"`
	Page        int    `json:"page" validate:"min=1"`
	ScopeToPage bool   `json:"scopeToPage,omitempty"`
}

// AuditRequest compares a section's mappings with a reference field inventory
type AuditRequest struct {
	Section       int    `json:"section" validate:"min=1,max=30"`
	InventoryPath string `json:"inventoryPath" validate:"required"`
}

// SessionStartRequest opens a page-by-page validation session. A zero
// StartPage or EndPage falls back to the service defaults; an EndPage of 0
// there means the document's last page.
type SessionStartRequest struct {
	FormDataSource
	Path        string `json:"path" validate:"required"`
	StartPage   int    `json:"startPage,omitempty" validate:"min=0"`
	EndPage     int    `json:"endPage,omitempty" validate:"min=0"`
	ScopeToPage bool   `json:"scopeToPage,omitempty"`
}

// SessionPageRequest validates one page of an open session. A zero Page
// means the session's current page.
type SessionPageRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Page      int    `json:"page,omitempty" validate:"min=0"`
}

// SessionReloadRequest swaps the PDF and form data of an open session
type SessionReloadRequest struct {
	FormDataSource
	SessionID string `json:"sessionId" validate:"required"`
	Path      string `json:"path" validate:"required"`
}

// Response Types

// ValidateFileResult represents the result of a PDF validation operation
type ValidateFileResult struct {
	Valid       bool   `json:"valid"`
	Path        string `json:"path"`
	Message     string `json:"message,omitempty"`
	Size        int64  `json:"size"`
	Pages       int    `json:"pages"`
	HasAcroForm bool   `json:"hasAcroForm"`
	FormFields  int    `json:"formFields"`
}

// MapFieldResult is the outcome of a mapping lookup. Found is false for a
// well-formed key with no mapping.
type MapFieldResult struct {
	Direction  string         `json:"direction"`
	Query      string         `json:"query"`
	Found      bool           `json:"found"`
	UIPath     string         `json:"uiPath,omitempty"`
	PDFFieldID string         `json:"pdfFieldId,omitempty"`
	Entry      *mapping.Entry `json:"entry,omitempty"`
}

// PageMappingsResult lists a page's mapping entries in declaration order
type PageMappingsResult struct {
	Page    int             `json:"page"`
	Section int             `json:"section,omitempty"`
	Entries []mapping.Entry `json:"entries"`
}

// ExtractPageResult carries the extraction report and each field's mapping status
type ExtractPageResult struct {
	Path   string                      `json:"path"`
	Report extraction.ValidationReport `json:"report"`
	Fields []coverage.FieldStatus      `json:"fields"`
	Mapped int                         `json:"mapped"`
	// Unmapped counts extracted fields the mapping table does not know
	Unmapped int `json:"unmapped"`
}

// CoverageResponse is the outcome of a one-shot coverage check
type CoverageResponse struct {
	Path          string                 `json:"path"`
	Page          int                    `json:"page"`
	Success       bool                   `json:"success"`
	Coverage      coverage.Result        `json:"coverage"`
	Percent       float64                `json:"percent"`
	Fields        []coverage.FieldStatus `json:"fields"`
	MappedCount   int                    `json:"mappedCount"`
	UnmappedCount int                    `json:"unmappedCount"`
	Warnings      []string               `json:"warnings,omitempty"`
	Errors        []string               `json:"errors,omitempty"`
}

// SessionState is returned by every session operation
type SessionState struct {
	Summary    validation.Summary             `json:"summary"`
	Entry      *validation.PageManifestEntry  `json:"entry,omitempty"`
	Navigation *validation.Navigation         `json:"navigation,omitempty"`
	Manifest   []validation.PageManifestEntry `json:"manifest,omitempty"`
}
