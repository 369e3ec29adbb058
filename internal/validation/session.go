// Package validation drives page-by-page extraction and coverage checks
// over a page range, gating navigation on complete coverage.
package validation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/sf86-validator/internal/coverage"
	"github.com/a3tai/sf86-validator/internal/formdata"
	"github.com/a3tai/sf86-validator/internal/mapping"
	pdferrors "github.com/a3tai/sf86-validator/internal/pdf/errors"
	"github.com/a3tai/sf86-validator/internal/pdf/extraction"
)

// Status is a manifest entry's validation state
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusComplete   Status = "complete"
)

// MsgCoverageRequired is surfaced when Advance is blocked
const MsgCoverageRequired = "must reach 100% coverage"

// PageManifestEntry is the validation state of one page. Complete means the
// page was checked, not that it passed.
type PageManifestEntry struct {
	PageNumber       int                          `json:"pageNumber"`
	FieldCount       int                          `json:"fieldCount"`
	MappedCount      int                          `json:"mappedCount"`
	UnmappedCount    int                          `json:"unmappedCount"`
	Fields           []coverage.FieldStatus       `json:"fields"`
	ValidationStatus Status                       `json:"validationStatus"`
	CoveragePercent  float64                      `json:"coveragePercent"`
	Report           *extraction.ValidationReport `json:"report,omitempty"`
	Coverage         *coverage.Result             `json:"coverage,omitempty"`
	Errors           []string                     `json:"errors,omitempty"`
	ValidatedAt      *time.Time                   `json:"validatedAt,omitempty"`
}

// Passed reports whether the page satisfies the advance gate
func (e PageManifestEntry) Passed() bool {
	return e.ValidationStatus == StatusComplete && e.CoveragePercent >= 100
}

// clone copies the entry so callers cannot reach session state through
// its slices or pointers.
func (e PageManifestEntry) clone() PageManifestEntry {
	e.Fields = slices.Clone(e.Fields)
	e.Errors = slices.Clone(e.Errors)
	if e.Report != nil {
		r := *e.Report
		r.Fields = make([]extraction.ExtractedField, len(e.Report.Fields))
		for i, f := range e.Report.Fields {
			if f.Rect != nil {
				rect := *f.Rect
				f.Rect = &rect
			}
			if f.Section != nil {
				section := *f.Section
				f.Section = &section
			}
			r.Fields[i] = f
		}
		r.Warnings = slices.Clone(r.Warnings)
		e.Report = &r
	}
	if e.Coverage != nil {
		c := *e.Coverage
		c.MatchedValues = slices.Clone(c.MatchedValues)
		c.MissingValues = slices.Clone(c.MissingValues)
		e.Coverage = &c
	}
	if e.ValidatedAt != nil {
		at := *e.ValidatedAt
		e.ValidatedAt = &at
	}
	return e
}

// PageExtractor is the extraction dependency of a session
type PageExtractor interface {
	ExtractPageFields(ctx context.Context, pdf []byte, page int) (extraction.ValidationReport, error)
}

// Options configures a session
type Options struct {
	StartPage int
	EndPage   int
	// ScopeToPage narrows expected values to the form-data values at the
	// ui paths mapped on the page being validated.
	ScopeToPage bool
}

// Navigation is the outcome of Advance or Retreat
type Navigation struct {
	Moved   bool   `json:"moved"`
	Page    int    `json:"page"`
	Message string `json:"message,omitempty"`
}

// Session owns one page-by-page validation run. It is not safe for
// concurrent use; Registry serializes access for shared callers.
type Session struct {
	ID        string
	CreatedAt time.Time

	table     *mapping.Table
	extractor PageExtractor
	pdf       []byte
	formData  formdata.Tree
	opts      Options
	current   int
	manifest  []PageManifestEntry
}

// NewSession creates a session with every page in range pending and the
// cursor on the start page.
func NewSession(table *mapping.Table, extractor PageExtractor, pdf []byte, data formdata.Tree, opts Options) (*Session, error) {
	if table == nil || extractor == nil {
		return nil, errors.New("validation: table and extractor are required")
	}
	if opts.StartPage < 1 || opts.EndPage < opts.StartPage {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput,
			fmt.Sprintf("invalid page range %d-%d", opts.StartPage, opts.EndPage))
	}
	if data == nil {
		data = formdata.Tree{}
	}

	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		table:     table,
		extractor: extractor,
		pdf:       pdf,
		formData:  data,
		opts:      opts,
		current:   opts.StartPage,
		manifest:  make([]PageManifestEntry, 0, opts.EndPage-opts.StartPage+1),
	}
	for p := opts.StartPage; p <= opts.EndPage; p++ {
		s.manifest = append(s.manifest, PageManifestEntry{
			PageNumber:       p,
			Fields:           []coverage.FieldStatus{},
			ValidationStatus: StatusPending,
		})
	}
	return s, nil
}

// SetDocument replaces the PDF and form data, for example after the PDF is
// regenerated. Prior results stay until their pages are validated again.
func (s *Session) SetDocument(pdf []byte, data formdata.Tree) {
	if data == nil {
		data = formdata.Tree{}
	}
	s.pdf = pdf
	s.formData = data
}

// Options returns the session's configuration
func (s *Session) Options() Options {
	return s.opts
}

// CurrentPage returns the cursor position
func (s *Session) CurrentPage() int {
	return s.current
}

func (s *Session) entry(page int) *PageManifestEntry {
	if page < s.opts.StartPage || page > s.opts.EndPage {
		return nil
	}
	return &s.manifest[page-s.opts.StartPage]
}

// Entry returns a copy of one page's manifest entry
func (s *Session) Entry(page int) (PageManifestEntry, bool) {
	e := s.entry(page)
	if e == nil {
		return PageManifestEntry{}, false
	}
	return e.clone(), true
}

// Manifest returns a deep copy of all entries in page order
func (s *Session) Manifest() []PageManifestEntry {
	out := make([]PageManifestEntry, len(s.manifest))
	for i, e := range s.manifest {
		out[i] = e.clone()
	}
	return out
}

// ValidateSinglePage extracts and checks one page and records the result.
// Extraction failures are recorded on the entry as complete with 0%
// coverage; only a page outside the session range or a cancelled context
// returns an error. A cancelled run leaves the previous entry in place.
func (s *Session) ValidateSinglePage(ctx context.Context, page int) (PageManifestEntry, error) {
	e := s.entry(page)
	if e == nil {
		return PageManifestEntry{}, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput,
			fmt.Sprintf("page %d is outside the session range %d-%d", page, s.opts.StartPage, s.opts.EndPage)).WithPage(page)
	}

	previous := *e
	e.ValidationStatus = StatusInProgress

	report, err := s.extractor.ExtractPageFields(ctx, s.pdf, page)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			*e = previous
			return previous.clone(), err
		}
		now := time.Now()
		*e = PageManifestEntry{
			PageNumber:       page,
			Fields:           []coverage.FieldStatus{},
			ValidationStatus: StatusComplete,
			CoveragePercent:  0,
			Errors:           []string{err.Error()},
			ValidatedAt:      &now,
		}
		return e.clone(), nil
	}

	expected := s.expectedValues(page)
	cov := coverage.Compute(report.Fields, expected)
	statuses := coverage.CompareFields(report.Fields, s.table, expected)
	mapped, unmapped := coverage.Counts(statuses)

	now := time.Now()
	*e = PageManifestEntry{
		PageNumber:       page,
		FieldCount:       report.TotalFields,
		MappedCount:      mapped,
		UnmappedCount:    unmapped,
		Fields:           statuses,
		ValidationStatus: StatusComplete,
		CoveragePercent:  cov.Percent(),
		Report:           &report,
		Coverage:         &cov,
		ValidatedAt:      &now,
	}
	return e.clone(), nil
}

func (s *Session) expectedValues(page int) []string {
	if !s.opts.ScopeToPage {
		return formdata.ExpectedValues(s.formData)
	}
	var paths []string
	seen := make(map[string]bool)
	for _, m := range s.table.FieldsForPage(page) {
		if !seen[m.UIPath] {
			seen[m.UIPath] = true
			paths = append(paths, m.UIPath)
		}
	}
	return formdata.ExpectedValuesAt(s.formData, paths)
}

// Advance moves to the next page only when the current page is complete at
// 100% coverage. A blocked advance is a normal result, not an error.
func (s *Session) Advance() Navigation {
	cur := s.entry(s.current)
	if cur == nil || !cur.Passed() {
		return Navigation{Page: s.current, Message: MsgCoverageRequired}
	}
	if s.current >= s.opts.EndPage {
		return Navigation{Page: s.current, Message: "already at the last page"}
	}
	s.current++
	return Navigation{Moved: true, Page: s.current}
}

// Retreat moves back one page. Manifest entries are kept.
func (s *Session) Retreat() Navigation {
	if s.current <= s.opts.StartPage {
		return Navigation{Page: s.current, Message: "already at the first page"}
	}
	s.current--
	return Navigation{Moved: true, Page: s.current}
}

// Summary aggregates a session's manifest
type Summary struct {
	SessionID       string  `json:"sessionId"`
	StartPage       int     `json:"startPage"`
	EndPage         int     `json:"endPage"`
	CurrentPage     int     `json:"currentPage"`
	TotalPages      int     `json:"totalPages"`
	PagesChecked    int     `json:"pagesChecked"`
	PagesPassed     int     `json:"pagesPassed"`
	PagesWithErrors int     `json:"pagesWithErrors"`
	OverallCoverage float64 `json:"overallCoverage"`
}

// Summary reports progress. OverallCoverage is the mean coverage of the
// pages checked so far.
func (s *Session) Summary() Summary {
	sum := Summary{
		SessionID:   s.ID,
		StartPage:   s.opts.StartPage,
		EndPage:     s.opts.EndPage,
		CurrentPage: s.current,
		TotalPages:  len(s.manifest),
	}
	var total float64
	for _, e := range s.manifest {
		if e.ValidationStatus != StatusComplete {
			continue
		}
		sum.PagesChecked++
		total += e.CoveragePercent
		if e.Passed() {
			sum.PagesPassed++
		}
		if len(e.Errors) > 0 {
			sum.PagesWithErrors++
		}
	}
	if sum.PagesChecked > 0 {
		sum.OverallCoverage = total / float64(sum.PagesChecked)
	}
	return sum
}
