package pdf

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/sf86-validator/internal/mapping"
	pdferrors "github.com/a3tai/sf86-validator/internal/pdf/errors"
	"github.com/a3tai/sf86-validator/internal/pdf/extraction"
	"github.com/a3tai/sf86-validator/internal/pdf/formpdf"
	"github.com/a3tai/sf86-validator/internal/pdf/security"
	"github.com/a3tai/sf86-validator/internal/validation"
)

const subform = "section_13_1-2[0]"

var (
	supervisorID = formpdf.FullName(subform, "TextField11[0]")
	stationID    = formpdf.FullName(subform, "p3-t68[4]")
)

func testTable(t *testing.T) *mapping.Table {
	t.Helper()
	tbl, err := mapping.New(mapping.Document{
		Name:     "service-test",
		Sections: []mapping.SectionRange{{Section: 13, StartPage: 2, EndPage: 3}},
		Fields: []mapping.Entry{
			{UIPath: "section13.federalEmployment.entries[0].supervisorName", PDFFieldID: supervisorID, Page: 2, FieldType: mapping.FieldTypeText},
			{UIPath: "section13.federalEmployment.entries[0].dutyStation", PDFFieldID: stationID, Page: 3, FieldType: mapping.FieldTypeText},
		},
	})
	require.NoError(t, err)
	return tbl
}

func textField(name, value string, page int) formpdf.Field {
	return formpdf.Field{Name: name, FT: "Tx", V: formpdf.Literal(value), Page: page, Rect: [4]float64{10, 10, 100, 30}}
}

func formPDF() []byte {
	return formpdf.Build(3, subform, []formpdf.Field{
		textField("TextField11[0]", "SGT Alvarez", 2),
		textField("TextField11[1]", "555-0100", 2),
		textField("p3-t68[4]", "Fort Meade", 3),
	})
}

const formJSON = `{
  "section13": {
    "federalEmployment": {
      "entries": [
        {"supervisorName": {"value": "SGT Alvarez"}, "supervisorPhone": "555-0100", "dutyStation": "Fort Meade"}
      ]
    }
  }
}`

type fixture struct {
	dir     string
	service *Service
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sf86.pdf"), formPDF(), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.pdf"), formpdf.Minimal(2), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("%PDF-1.7 not really"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "form.json"), []byte(formJSON), 0o600))

	extractor := extraction.NewExtractor(extraction.WithLogger(log.New(io.Discard, "", 0)))
	svc, err := NewService(1024*1024, dir, testTable(t), extractor, opts...)
	require.NoError(t, err)
	return fixture{dir: dir, service: svc}
}

func TestNewService_Validation(t *testing.T) {
	tbl := testTable(t)
	tests := []struct {
		name        string
		maxFileSize int64
		dir         string
		table       *mapping.Table
		errorMsg    string
	}{
		{name: "nil table", maxFileSize: 1, dir: "/tmp", errorMsg: "mapping table cannot be nil"},
		{name: "zero max file size", maxFileSize: 0, dir: "/tmp", table: tbl, errorMsg: "maxFileSize must be greater than 0"},
		{name: "empty directory", maxFileSize: 1, dir: "", table: tbl, errorMsg: "failed to create path validator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.maxFileSize, tt.dir, tt.table, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}

	svc, err := NewService(2048, "/tmp", tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), svc.GetMaxFileSize())
	assert.Equal(t, "/tmp", svc.GetConfiguredDirectory())
	assert.Same(t, tbl, svc.Table())
}

func TestService_ValidateFile(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		path       string
		valid      bool
		pages      int
		acroForm   bool
		messageHas string
	}{
		{name: "form pdf", path: "sf86.pdf", valid: true, pages: 3, acroForm: true},
		{name: "pdf without form", path: "blank.pdf", valid: true, pages: 2, messageHas: "no AcroForm"},
		{name: "garbage", path: "broken.pdf", messageHas: "DOCUMENT_LOAD"},
		{name: "wrong extension", path: "notes.txt", messageHas: "not a PDF"},
		{name: "missing", path: "nope.pdf", messageHas: "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.service.ValidateFile(ValidateFileRequest{Path: tt.path})
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.pages, result.Pages)
			assert.Equal(t, tt.acroForm, result.HasAcroForm)
			if tt.messageHas != "" {
				assert.Contains(t, result.Message, tt.messageHas)
			}
		})
	}

	_, err := f.service.ValidateFile(ValidateFileRequest{Path: "/etc/hosts.pdf"})
	assert.ErrorIs(t, err, security.ErrOutsideDirectory)

	_, err = f.service.ValidateFile(ValidateFileRequest{})
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidInput))
}

func TestService_ValidateFileTooLarge(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.pdf"), formPDF(), 0o600))
	svc, err := NewService(16, dir, testTable(t), nil)
	require.NoError(t, err)

	result, err := svc.ValidateFile(ValidateFileRequest{Path: "big.pdf"})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "file too large")
}

func TestService_MapField(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		req       MapFieldRequest
		direction string
		found     bool
		uiPath    string
		fieldID   string
		wantErr   bool
	}{
		{
			name:      "ui to pdf",
			req:       MapFieldRequest{UIPath: "section13.federalEmployment.entries[0].supervisorName"},
			direction: "ui-to-pdf", found: true,
			uiPath: "section13.federalEmployment.entries[0].supervisorName", fieldID: supervisorID,
		},
		{
			name:      "pdf to ui",
			req:       MapFieldRequest{PDFFieldID: stationID},
			direction: "pdf-to-ui", found: true,
			uiPath: "section13.federalEmployment.entries[0].dutyStation", fieldID: stationID,
		},
		{
			name:      "unknown ui path is not an error",
			req:       MapFieldRequest{UIPath: "section13.federalEmployment.entries[3].supervisorName"},
			direction: "ui-to-pdf",
		},
		{name: "malformed ui path", req: MapFieldRequest{UIPath: "section13..x"}, wantErr: true},
		{name: "neither key", req: MapFieldRequest{}, wantErr: true},
		{name: "both keys", req: MapFieldRequest{UIPath: "a", PDFFieldID: "b"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.service.MapField(tt.req)
			if tt.wantErr {
				assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.direction, result.Direction)
			assert.Equal(t, tt.found, result.Found)
			assert.Equal(t, tt.uiPath, result.UIPath)
			assert.Equal(t, tt.fieldID, result.PDFFieldID)
			if tt.found {
				require.NotNil(t, result.Entry)
				assert.Equal(t, 13, result.Entry.Section)
			}
		})
	}
}

func TestService_PageMappings(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.PageMappings(PageMappingsRequest{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 13, result.Section)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, supervisorID, result.Entries[0].PDFFieldID)

	result, err = f.service.PageMappings(PageMappingsRequest{Page: 9})
	require.NoError(t, err)
	assert.Zero(t, result.Section)
	assert.Empty(t, result.Entries)

	_, err = f.service.PageMappings(PageMappingsRequest{Page: 0})
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidInput))
}

func TestService_ExtractPage(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.ExtractPage(context.Background(), ExtractPageRequest{Path: "sf86.pdf", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Report.TotalFields)
	assert.Equal(t, 2, result.Report.FieldsWithValues)
	assert.Equal(t, 1, result.Mapped)
	assert.Equal(t, 1, result.Unmapped)
	require.Len(t, result.Fields, 2)
	assert.Equal(t, supervisorID, result.Fields[0].PDFFieldID)
	assert.True(t, result.Fields[0].Mapped)
	assert.False(t, result.Fields[1].Mapped)

	_, err = f.service.ExtractPage(context.Background(), ExtractPageRequest{Path: "sf86.pdf", Page: 7})
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypePageOutOfRange))
}

func TestService_CheckCoverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     CoverageRequest
		success bool
		percent float64
		summary string
	}{
		{
			name:    "whole tree against page 2",
			req:     CoverageRequest{Path: "sf86.pdf", Page: 2, FormDataSource: FormDataSource{FormDataPath: "form.json"}},
			percent: 200.0 / 3,
			summary: "Found 2/3 expected values (66.7% success rate)",
		},
		{
			name:    "scoped to page 3",
			req:     CoverageRequest{Path: "sf86.pdf", Page: 3, ScopeToPage: true, FormDataSource: FormDataSource{FormDataPath: "form.json"}},
			success: true,
			percent: 100,
			summary: "Found 1/1 expected values (100.0% success rate)",
		},
		{
			name: "inline data",
			req: CoverageRequest{Path: "sf86.pdf", Page: 2, FormDataSource: FormDataSource{
				FormData: map[string]any{"name": "SGT Alvarez"},
			}},
			success: true,
			percent: 100,
			summary: "Found 1/1 expected values (100.0% success rate)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.service.CheckCoverage(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.success, resp.Success)
			assert.InDelta(t, tt.percent, resp.Percent, 0.001)
			assert.Equal(t, tt.summary, resp.Coverage.SummaryText)
			assert.Empty(t, resp.Errors)
		})
	}
}

func TestService_CheckCoverageRecordsDocumentErrors(t *testing.T) {
	f := newFixture(t)

	resp, err := f.service.CheckCoverage(context.Background(), CoverageRequest{Path: "sf86.pdf", Page: 9})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "PAGE_OUT_OF_RANGE")

	_, err = f.service.CheckCoverage(context.Background(), CoverageRequest{
		Path: "sf86.pdf", Page: 2, FormDataSource: FormDataSource{FormDataPath: "missing.json"},
	})
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidInput))
}

func TestService_AuditSection(t *testing.T) {
	f := newFixture(t)
	inv := mapping.Inventory{Fields: []mapping.ReferenceField{
		{Name: supervisorID, Page: 2, Type: "PDFTextField"},
		{Name: stationID, Page: 3, Type: "PDFTextField"},
		{Name: formpdf.FullName(subform, "TextField11[1]"), Page: 2, Type: "PDFTextField"},
	}}
	raw, err := json.Marshal(inv)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "reference.json"), raw, 0o600))

	report, err := f.service.AuditSection(AuditRequest{Section: 13, InventoryPath: "reference.json"})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Implemented)
	assert.Len(t, report.Missing, 1)

	_, err = f.service.AuditSection(AuditRequest{Section: 31, InventoryPath: "reference.json"})
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidInput))
}

func TestService_SessionLifecycle(t *testing.T) {
	f := newFixture(t, WithPageRange(2, 0))
	ctx := context.Background()

	started, err := f.service.StartSession(SessionStartRequest{
		Path: "sf86.pdf", ScopeToPage: true, FormDataSource: FormDataSource{FormDataPath: "form.json"},
	})
	require.NoError(t, err)
	id := started.Summary.SessionID
	assert.Equal(t, 2, started.Summary.StartPage)
	assert.Equal(t, 3, started.Summary.EndPage)
	assert.Len(t, started.Manifest, 2)
	assert.Equal(t, []string{id}, f.service.SessionIDs())

	blocked, err := f.service.AdvanceSession(id)
	require.NoError(t, err)
	assert.False(t, blocked.Navigation.Moved)
	assert.Equal(t, validation.MsgCoverageRequired, blocked.Navigation.Message)

	checked, err := f.service.ValidateSessionPage(ctx, SessionPageRequest{SessionID: id})
	require.NoError(t, err)
	require.NotNil(t, checked.Entry)
	assert.Equal(t, 2, checked.Entry.PageNumber)
	assert.True(t, checked.Entry.Passed())

	moved, err := f.service.AdvanceSession(id)
	require.NoError(t, err)
	assert.True(t, moved.Navigation.Moved)
	assert.Equal(t, 3, moved.Summary.CurrentPage)

	back, err := f.service.RetreatSession(id)
	require.NoError(t, err)
	assert.Equal(t, 2, back.Navigation.Page)
	require.NotNil(t, back.Entry)
	assert.Equal(t, validation.StatusComplete, back.Entry.ValidationStatus)

	reloaded, err := f.service.ReloadSession(SessionReloadRequest{SessionID: id, Path: "sf86.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Summary.PagesPassed)

	manifest, err := f.service.SessionManifest(id)
	require.NoError(t, err)
	assert.Len(t, manifest.Manifest, 2)

	assert.True(t, f.service.CloseSession(id))
	assert.False(t, f.service.CloseSession(id))
	_, err = f.service.SessionManifest(id)
	assert.ErrorIs(t, err, validation.ErrSessionNotFound)
}

func TestService_StartSessionRejectsBadRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.StartSession(SessionStartRequest{Path: "sf86.pdf", StartPage: 3, EndPage: 2})
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidInput))
	assert.Empty(t, f.service.SessionIDs())
}

func TestService_SessionIdleTimeout(t *testing.T) {
	assert.Zero(t, newFixture(t).service.SessionIdleTimeout())

	f := newFixture(t, WithSessionIdleTimeout(time.Minute))
	assert.Equal(t, time.Minute, f.service.SessionIdleTimeout())
}
