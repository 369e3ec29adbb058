package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	pdferrors "github.com/a3tai/sf86-validator/internal/pdf/errors"
	"github.com/a3tai/sf86-validator/internal/pdf/security"
)

// Document is a PDF read into memory and probed for its page count and
// AcroForm.
type Document struct {
	Path        string
	Size        int64
	Data        []byte
	Pages       int
	HasAcroForm bool
	FormFields  int // top-level /Fields entries
}

// Loader reads PDFs from the configured directory under a size limit
type Loader struct {
	maxFileSize int64
	paths       *security.PathValidator
}

// NewLoader creates a loader confined by paths
func NewLoader(maxFileSize int64, paths *security.PathValidator) *Loader {
	return &Loader{maxFileSize: maxFileSize, paths: paths}
}

// Load resolves path, checks it, reads it, and probes the result. Failures
// to parse the file come back as DOCUMENT_LOAD errors.
func (l *Loader) Load(path string) (*Document, error) {
	resolved, err := l.paths.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput,
			fmt.Sprintf("file does not exist: %s", path))
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if err := l.checkFileInfo(path, info); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	doc := &Document{Path: resolved, Size: int64(len(data)), Data: data}
	if err := probe(doc); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeDocumentLoad, "invalid PDF file", err)
	}
	return doc, nil
}

// ValidateFile reports whether path is a readable PDF. Validation failures
// are part of the result; only path confinement errors are returned.
func (l *Loader) ValidateFile(req ValidateFileRequest) (*ValidateFileResult, error) {
	if _, err := l.paths.Resolve(req.Path); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	result := &ValidateFileResult{Path: req.Path}
	doc, err := l.Load(req.Path)
	if err != nil {
		result.Message = err.Error()
		return result, nil //nolint:nilerr // the validation error is the result
	}

	result.Valid = true
	result.Path = doc.Path
	result.Size = doc.Size
	result.Pages = doc.Pages
	result.HasAcroForm = doc.HasAcroForm
	result.FormFields = doc.FormFields
	if !doc.HasAcroForm {
		result.Message = pdferrors.NewPDFError(pdferrors.ErrorTypeMissingAcroForm,
			"PDF has no AcroForm; every page will extract zero fields").Error()
	}
	return result, nil
}

func (l *Loader) checkFileInfo(path string, info os.FileInfo) error {
	switch {
	case info.IsDir():
		return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput,
			fmt.Sprintf("path is a directory, not a file: %s", path))
	case !strings.HasSuffix(strings.ToLower(path), ".pdf"):
		return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput,
			fmt.Sprintf("file is not a PDF: %s", path))
	case info.Size() == 0:
		return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput,
			fmt.Sprintf("file is empty: %s", path))
	case info.Size() > l.maxFileSize:
		return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput,
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", info.Size(), l.maxFileSize))
	}
	return nil
}

// probe opens the document with ledongthuc/pdf to count pages and top-level
// form fields.
func probe(doc *Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc.Data), doc.Size)
	if err != nil {
		return err
	}
	doc.Pages = r.NumPage()

	fields := r.Trailer().Key("Root").Key("AcroForm").Key("Fields")
	if !fields.IsNull() {
		doc.HasAcroForm = true
		doc.FormFields = fields.Len()
	}
	return nil
}
