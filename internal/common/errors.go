package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTooLarge     = errors.New("payload too large")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrUpstream     = errors.New("upstream service error")
)

// Error codes returned to API callers.
const (
	CodeConfig            = "CONFIG_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidFile       = "INVALID_FILE"
	CodeNotFound          = "NOT_FOUND"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeExtractionFailed  = "EXTRACTION_FAILED"
	CodeStructuringFailed = "STRUCTURING_FAILED"
	CodeDatabase          = "DATABASE_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	CodeInvalidInput:      http.StatusBadRequest,
	CodeInvalidFile:       http.StatusBadRequest,
	CodeNotFound:          http.StatusNotFound,
	CodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
	CodeExtractionFailed:  http.StatusInternalServerError,
	CodeStructuringFailed: http.StatusBadGateway,
	CodeDatabase:          http.StatusInternalServerError,
	CodeInternal:          http.StatusInternalServerError,
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NotFoundErrorf(format string, args ...interface{}) error {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), ErrNotFound)
}

func InvalidInputErrorf(format string, args ...interface{}) error {
	return NewAppError(CodeInvalidInput, fmt.Sprintf(format, args...), ErrInvalidInput)
}

// HTTPStatus maps an error to the status code used at the HTTP boundary.
// The outermost AppError code wins over sentinels found deeper in the chain.
func HTTPStatus(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		if st, ok := codeStatus[ae.Code]; ok {
			return st
		}
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the short code reported to API callers.
func ErrorCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return CodeInvalidInput
	case errors.Is(err, ErrTooLarge):
		return CodePayloadTooLarge
	case errors.Is(err, ErrDatabase):
		return CodeDatabase
	default:
		return CodeInternal
	}
}

// ErrorMessage returns the human readable part of err without the code prefix.
func ErrorMessage(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		if ae.Cause != nil && !isSentinel(ae.Cause) {
			return ae.Message + ": " + ae.Cause.Error()
		}
		return ae.Message
	}
	return err.Error()
}

func isSentinel(err error) bool {
	switch err {
	case ErrNotFound, ErrInvalidInput, ErrTooLarge, ErrInternal, ErrDatabase, ErrValidation, ErrUpstream:
		return true
	}
	return false
}
