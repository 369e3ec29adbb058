package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Recoverability(t *testing.T) {
	tests := []struct {
		errorType   ErrorType
		recoverable bool
		fatal       bool
	}{
		{ErrorTypeFieldRead, true, false},
		{ErrorTypePageResolution, true, false},
		{ErrorTypeMissingAcroForm, true, false},
		{ErrorTypeDocumentLoad, false, true},
		{ErrorTypePageOutOfRange, false, true},
		{ErrorTypeInvalidInput, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.errorType.String(), func(t *testing.T) {
			err := NewPDFError(tt.errorType, "boom")
			assert.Equal(t, tt.recoverable, err.Recoverable)
			assert.Equal(t, tt.fatal, err.IsFatal())
		})
	}
}

func TestPDFError_ErrorString(t *testing.T) {
	err := NewPDFError(ErrorTypeFieldRead, "cannot decode value").
		WithField("form1[0].Sections7-9[0].TextField11[3]").
		WithPage(6)

	assert.Equal(t, "[FIELD_READ] cannot decode value (field form1[0].Sections7-9[0].TextField11[3])", err.Error())
	assert.Equal(t, 6, err.PageNumber)
}

func TestWrapError_UnwrapAndAs(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	wrapped := fmt.Errorf("page 3: %w", WrapError(ErrorTypeDocumentLoad, "failed to read PDF", cause))

	pdfErr, ok := AsPDFError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeDocumentLoad, pdfErr.Type)
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
	assert.True(t, IsType(wrapped, ErrorTypeDocumentLoad))
	assert.False(t, IsType(wrapped, ErrorTypePageOutOfRange))
	assert.False(t, IsType(cause, ErrorTypeDocumentLoad))
}

func TestErrorCollection_SplitsBySeverity(t *testing.T) {
	ec := NewErrorCollection()
	ec.Add(NewPDFError(ErrorTypeFieldRead, "bad value"))
	ec.Add(NewPDFError(ErrorTypePageResolution, "no widget"))
	ec.Add(NewPDFError(ErrorTypeDocumentLoad, "bad xref"))

	errs, warnings := ec.Count()
	assert.Equal(t, 1, errs)
	assert.Equal(t, 2, warnings)
	assert.Len(t, ec.Messages(), 2)
}
