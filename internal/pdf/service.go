package pdf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/a3tai/sf86-validator/internal/coverage"
	"github.com/a3tai/sf86-validator/internal/formdata"
	"github.com/a3tai/sf86-validator/internal/mapping"
	pdferrors "github.com/a3tai/sf86-validator/internal/pdf/errors"
	"github.com/a3tai/sf86-validator/internal/pdf/extraction"
	"github.com/a3tai/sf86-validator/internal/pdf/security"
	"github.com/a3tai/sf86-validator/internal/validation"
)

var validate = validator.New()

// Service fronts the mapping table, extractor, coverage engine and session
// registry for the MCP and HTTP transports. Every file path a caller passes
// is confined to the configured directory.
type Service struct {
	maxFileSize   int64
	pathValidator *security.PathValidator
	loader        *Loader
	table         *mapping.Table
	extractor     *extraction.Extractor
	sessions      *validation.Registry
	startPage     int
	endPage       int
	sessionIdle   time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithPageRange sets the default session range. An end page of 0 means the
// document's last page.
func WithPageRange(start, end int) Option {
	return func(s *Service) {
		s.startPage = start
		s.endPage = end
	}
}

// WithSessionIdleTimeout evicts sessions not used for d. Zero keeps them
// until closed.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(s *Service) { s.sessionIdle = d }
}

// NewService creates a new SF-86 service. A nil extractor gets a default one
// bound to table.
func NewService(maxFileSize int64, configuredDirectory string, table *mapping.Table,
	extractor *extraction.Extractor, opts ...Option,
) (*Service, error) {
	if table == nil {
		return nil, fmt.Errorf("mapping table cannot be nil")
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("maxFileSize must be greater than 0")
	}

	pathValidator, err := security.NewPathValidator(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	if extractor == nil {
		extractor = extraction.NewExtractor(extraction.WithSections(table))
	}

	s := &Service{
		maxFileSize:   maxFileSize,
		pathValidator: pathValidator,
		loader:        NewLoader(maxFileSize, pathValidator),
		table:         table,
		extractor:     extractor,
		startPage:     1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = validation.NewRegistry(validation.WithIdleTimeout(s.sessionIdle))
	return s, nil
}

// Table returns the mapping table the service was built with
func (s *Service) Table() *mapping.Table {
	return s.table
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// GetConfiguredDirectory returns the directory file paths are confined to
func (s *Service) GetConfiguredDirectory() string {
	return s.pathValidator.GetConfiguredDirectory()
}

// CacheStats reports the extractor's document cache counters
func (s *Service) CacheStats() extraction.CacheStats {
	if c := s.extractor.Cache(); c != nil {
		return c.Stats()
	}
	return extraction.CacheStats{}
}

// ValidateFile checks that a file is a readable PDF and probes its form
func (s *Service) ValidateFile(req ValidateFileRequest) (*ValidateFileResult, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	return s.loader.ValidateFile(req)
}

// MapField looks a mapping up by uiPath or by pdfFieldId
func (s *Service) MapField(req MapFieldRequest) (*MapFieldResult, error) {
	uiPath := strings.TrimSpace(req.UIPath)
	fieldID := strings.TrimSpace(req.PDFFieldID)
	if (uiPath == "") == (fieldID == "") {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput,
			"exactly one of uiPath and pdfFieldId is required")
	}

	if uiPath != "" {
		result := &MapFieldResult{Direction: "ui-to-pdf", Query: uiPath}
		id, found, err := s.table.MapUIPathToPDFField(uiPath)
		if err != nil {
			return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, "malformed uiPath", err)
		}
		if !found {
			return result, nil
		}
		entry, _, _ := s.table.EntryForPDFField(id)
		result.Found = true
		result.UIPath = uiPath
		result.PDFFieldID = id
		result.Entry = &entry
		return result, nil
	}

	result := &MapFieldResult{Direction: "pdf-to-ui", Query: fieldID}
	entry, found, err := s.table.EntryForPDFField(fieldID)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, "malformed pdfFieldId", err)
	}
	if !found {
		return result, nil
	}
	result.Found = true
	result.UIPath = entry.UIPath
	result.PDFFieldID = entry.PDFFieldID
	result.Entry = &entry
	return result, nil
}

// PageMappings lists the entries declared for a page
func (s *Service) PageMappings(req PageMappingsRequest) (*PageMappingsResult, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	result := &PageMappingsResult{
		Page:    req.Page,
		Entries: s.table.FieldsForPage(req.Page),
	}
	if section, ok := s.table.SectionForPage(req.Page); ok {
		result.Section = section
	}
	return result, nil
}

// ExtractPage extracts one page's fields and joins them to the mapping table
func (s *Service) ExtractPage(ctx context.Context, req ExtractPageRequest) (*ExtractPageResult, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	doc, err := s.loader.Load(req.Path)
	if err != nil {
		return nil, err
	}

	report, err := s.extractor.ExtractPageFields(ctx, doc.Data, req.Page)
	if err != nil {
		return nil, err
	}
	statuses := coverage.CompareFields(report.Fields, s.table, nil)
	mapped, unmapped := coverage.Counts(statuses)

	return &ExtractPageResult{
		Path:     doc.Path,
		Report:   report,
		Fields:   statuses,
		Mapped:   mapped,
		Unmapped: unmapped,
	}, nil
}

// CheckCoverage validates a single page outside any session. Document
// errors are reported in the response, as a session would record them.
func (s *Service) CheckCoverage(ctx context.Context, req CoverageRequest) (*CoverageResponse, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	doc, err := s.loader.Load(req.Path)
	if err != nil {
		return nil, err
	}
	data, err := s.loadFormData(req.FormDataSource)
	if err != nil {
		return nil, err
	}

	session, err := validation.NewSession(s.table, s.extractor, doc.Data, data, validation.Options{
		StartPage:   req.Page,
		EndPage:     req.Page,
		ScopeToPage: req.ScopeToPage,
	})
	if err != nil {
		return nil, err
	}
	entry, err := session.ValidateSinglePage(ctx, req.Page)
	if err != nil {
		return nil, err
	}

	resp := &CoverageResponse{
		Path:          doc.Path,
		Page:          req.Page,
		Success:       entry.Passed(),
		Percent:       entry.CoveragePercent,
		Fields:        entry.Fields,
		MappedCount:   entry.MappedCount,
		UnmappedCount: entry.UnmappedCount,
		Errors:        entry.Errors,
	}
	if entry.Coverage != nil {
		resp.Coverage = *entry.Coverage
	}
	if entry.Report != nil {
		resp.Warnings = entry.Report.Warnings
	}
	return resp, nil
}

// AuditSection compares a section's mapping entries with a reference inventory
func (s *Service) AuditSection(req AuditRequest) (*mapping.AuditReport, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	path, err := s.pathValidator.Resolve(req.InventoryPath)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	inv, err := mapping.LoadInventory(path)
	if err != nil {
		return nil, err
	}
	report := s.table.Audit(req.Section, inv)
	return &report, nil
}

// StartSession loads a PDF and its form data and registers a new session
func (s *Service) StartSession(req SessionStartRequest) (*SessionState, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	doc, err := s.loader.Load(req.Path)
	if err != nil {
		return nil, err
	}
	data, err := s.loadFormData(req.FormDataSource)
	if err != nil {
		return nil, err
	}

	opts := validation.Options{
		StartPage:   firstNonZero(req.StartPage, s.startPage, 1),
		EndPage:     firstNonZero(req.EndPage, s.endPage, doc.Pages),
		ScopeToPage: req.ScopeToPage,
	}
	session, err := validation.NewSession(s.table, s.extractor, doc.Data, data, opts)
	if err != nil {
		return nil, err
	}
	s.sessions.Add(session)

	return &SessionState{
		Summary:  session.Summary(),
		Manifest: session.Manifest(),
	}, nil
}

// ValidateSessionPage validates a page of an open session, by default its
// current page.
func (s *Service) ValidateSessionPage(ctx context.Context, req SessionPageRequest) (*SessionState, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	var state SessionState
	err := s.sessions.With(req.SessionID, func(session *validation.Session) error {
		page := req.Page
		if page == 0 {
			page = session.CurrentPage()
		}
		entry, err := session.ValidateSinglePage(ctx, page)
		if err != nil {
			return err
		}
		state.Entry = &entry
		state.Summary = session.Summary()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// AdvanceSession moves a session to its next page if the current page passed
func (s *Service) AdvanceSession(id string) (*SessionState, error) {
	return s.navigate(id, (*validation.Session).Advance)
}

// RetreatSession moves a session back one page
func (s *Service) RetreatSession(id string) (*SessionState, error) {
	return s.navigate(id, (*validation.Session).Retreat)
}

func (s *Service) navigate(id string, move func(*validation.Session) validation.Navigation) (*SessionState, error) {
	var state SessionState
	err := s.sessions.With(id, func(session *validation.Session) error {
		nav := move(session)
		state.Navigation = &nav
		if entry, ok := session.Entry(nav.Page); ok {
			state.Entry = &entry
		}
		state.Summary = session.Summary()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SessionManifest returns a session's summary and full manifest
func (s *Service) SessionManifest(id string) (*SessionState, error) {
	var state SessionState
	err := s.sessions.With(id, func(session *validation.Session) error {
		state.Summary = session.Summary()
		state.Manifest = session.Manifest()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ReloadSession swaps a session's PDF and form data, keeping prior results
func (s *Service) ReloadSession(req SessionReloadRequest) (*SessionState, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	doc, err := s.loader.Load(req.Path)
	if err != nil {
		return nil, err
	}
	data, err := s.loadFormData(req.FormDataSource)
	if err != nil {
		return nil, err
	}

	var state SessionState
	err = s.sessions.With(req.SessionID, func(session *validation.Session) error {
		session.SetDocument(doc.Data, data)
		state.Summary = session.Summary()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// CloseSession drops a session and reports whether it existed
func (s *Service) CloseSession(id string) bool {
	return s.sessions.Remove(id)
}

// SessionIdleTimeout returns how long an unused session is kept
func (s *Service) SessionIdleTimeout() time.Duration {
	return s.sessions.IdleTimeout()
}

// SessionIDs lists open sessions
func (s *Service) SessionIDs() []string {
	return s.sessions.IDs()
}

func (s *Service) loadFormData(src FormDataSource) (formdata.Tree, error) {
	if src.FormData != nil {
		return formdata.Tree(src.FormData), nil
	}
	if strings.TrimSpace(src.FormDataPath) == "" {
		return formdata.Tree{}, nil
	}
	path, err := s.pathValidator.Resolve(src.FormDataPath)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	data, err := formdata.LoadFile(path)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, "cannot load form data", err)
	}
	return data, nil
}

func checkRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, "invalid request", err)
	}
	return nil
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
