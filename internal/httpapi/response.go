package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pdferrors "github.com/a3tai/sf86-validator/internal/pdf/errors"
	"github.com/a3tai/sf86-validator/internal/pdf/security"
	"github.com/a3tai/sf86-validator/internal/validation"
)

// Error codes returned in APIError.Code
const (
	ErrorCodeValidation      = "VALIDATION_ERROR"
	ErrorCodeInvalidJSON     = "INVALID_JSON"
	ErrorCodeForbiddenPath   = "FORBIDDEN_PATH"
	ErrorCodeNotFound        = "NOT_FOUND"
	ErrorCodeUnreadablePDF   = "UNREADABLE_PDF"
	ErrorCodeRequestTimeout  = "REQUEST_TIMEOUT"
	ErrorCodeInternalFailure = "INTERNAL_SERVER_ERROR"
)

// APIError is the body of every failed request
type APIError struct {
	Success bool     `json:"success"`
	Code    string   `json:"code"`
	Errors  []string `json:"errors"`
}

// RespondWithError sends a standardized JSON error response
func RespondWithError(c *gin.Context, httpStatus int, code string, messages ...string) {
	c.AbortWithStatusJSON(httpStatus, APIError{Success: false, Code: code, Errors: messages})
}

// RespondWithServiceError maps a service error onto a status code
func RespondWithServiceError(c *gin.Context, err error) {
	status, code := classify(err)
	RespondWithError(c, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, security.ErrOutsideDirectory):
		return http.StatusForbidden, ErrorCodeForbiddenPath
	case errors.Is(err, validation.ErrSessionNotFound):
		return http.StatusNotFound, ErrorCodeNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, ErrorCodeRequestTimeout
	}

	if pdfErr, ok := pdferrors.AsPDFError(err); ok {
		switch pdfErr.Type {
		case pdferrors.ErrorTypeInvalidInput:
			return http.StatusBadRequest, ErrorCodeValidation
		case pdferrors.ErrorTypeDocumentLoad, pdferrors.ErrorTypePageOutOfRange, pdferrors.ErrorTypeMissingAcroForm:
			return http.StatusUnprocessableEntity, ErrorCodeUnreadablePDF
		}
	}
	return http.StatusInternalServerError, ErrorCodeInternalFailure
}
