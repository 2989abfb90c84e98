package models

import (
	"errors"
	"fmt"
)

// Pipeline error codes. Each stage converts its own failure into one of these
// and the description becomes that stage's output.
const (
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeFetchFailed        = "FETCH_FAILED"
	ErrCodeNonSuccessStatus   = "NON_SUCCESS_STATUS"
	ErrCodeExtraction         = "EXTRACTION_FAILED"
	ErrCodeMalformedTransform = "MALFORMED_TRANSFORM"
	ErrCodeCompile            = "COMPILE_FAILED"
	ErrCodeTransformRuntime   = "TRANSFORM_RUNTIME"
	ErrCodeConfigLoad         = "CONFIG_LOAD"
)

// API error codes.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return &ErrorDetail{Code: e.Code, Message: msg}
}

// CodeOf returns the code of the first ScrapeError in err's chain, or "" when
// there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
