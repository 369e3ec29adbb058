package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// PDFError describes a failure while loading or reading a PDF, with enough
// context for a caller to decide whether the page can be retried.
type PDFError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	FieldName   string    `json:"field_name,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	Err         error     `json:"-"`
}

// ErrorType represents the categories of failure the validator distinguishes
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeInvalidInput
	ErrorTypeFieldRead
	ErrorTypePageResolution
	ErrorTypeDocumentLoad
	ErrorTypePageOutOfRange
	ErrorTypeMissingAcroForm
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.FieldName != "" {
		msg += fmt.Sprintf(" (field %s)", e.FieldName)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	return msg
}

// Unwrap returns the underlying cause, if any
func (e *PDFError) Unwrap() error {
	return e.Err
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeInvalidInput:
		return "INVALID_INPUT"
	case ErrorTypeFieldRead:
		return "FIELD_READ"
	case ErrorTypePageResolution:
		return "PAGE_RESOLUTION"
	case ErrorTypeDocumentLoad:
		return "DOCUMENT_LOAD"
	case ErrorTypePageOutOfRange:
		return "PAGE_OUT_OF_RANGE"
	case ErrorTypeMissingAcroForm:
		return "MISSING_ACROFORM"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypePageResolution:
		return SeverityInfo
	case ErrorTypeFieldRead, ErrorTypeMissingAcroForm:
		return SeverityWarning
	case ErrorTypeDocumentLoad, ErrorTypePageOutOfRange:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRecoverable reports whether extraction continues past an error of this type.
// Field and page-attribution failures degrade a report; document failures abort it.
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeFieldRead, ErrorTypePageResolution, ErrorTypeMissingAcroForm:
		return true
	default:
		return false
	}
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// WrapError wraps a standard error as a PDFError
func WrapError(errorType ErrorType, message string, err error) *PDFError {
	e := NewPDFError(errorType, message)
	e.Err = err
	if err != nil {
		e.Context = err.Error()
	}
	return e
}

// WithField adds the fully qualified field name to an existing PDFError
func (e *PDFError) WithField(name string) *PDFError {
	e.FieldName = name
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// IsFatal returns true if the error aborts the current validation call
func (e *PDFError) IsFatal() bool {
	return e.Type.GetSeverity() == SeverityFatal
}

// AsPDFError unwraps err looking for a *PDFError
func AsPDFError(err error) (*PDFError, bool) {
	var pdfErr *PDFError
	if stderrors.As(err, &pdfErr) {
		return pdfErr, true
	}
	return nil, false
}

// IsType reports whether err carries a PDFError of the given type
func IsType(err error, errorType ErrorType) bool {
	pdfErr, ok := AsPDFError(err)
	return ok && pdfErr.Type == errorType
}

// ErrorCollection gathers recovered problems for a single extraction run
type ErrorCollection struct {
	Errors   []*PDFError `json:"errors"`
	Warnings []*PDFError `json:"warnings"`
}

// NewErrorCollection creates an empty error collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		Warnings: make([]*PDFError, 0),
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *PDFError) {
	switch err.Type.GetSeverity() {
	case SeverityInfo, SeverityWarning:
		ec.Warnings = append(ec.Warnings, err)
	default:
		ec.Errors = append(ec.Errors, err)
	}
}

// Messages flattens the warnings into strings for reports
func (ec *ErrorCollection) Messages() []string {
	out := make([]string, 0, len(ec.Warnings))
	for _, w := range ec.Warnings {
		out = append(out, w.Error())
	}
	return out
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}
