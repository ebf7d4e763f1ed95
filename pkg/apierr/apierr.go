package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies one variant of the closed error taxonomy. Every error
// that crosses a component boundary carries exactly one Code, and the
// gateway maps it to an HTTP status without further interpretation.
type Code string

const (
	CodeAuth               Code = "AUTH_ERROR"
	CodeAPIKey             Code = "API_KEY_ERROR"
	CodeAuthorization      Code = "AUTHORIZATION_ERROR"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeSchemaValidation   Code = "SCHEMA_VALIDATION_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodeRateLimit          Code = "RATE_LIMIT_EXCEEDED"
	CodeExternalAPI        Code = "EXTERNAL_API_ERROR"
	CodeTimeout            Code = "TIMEOUT_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeInternal           Code = "INTERNAL_SERVER_ERROR"
	CodeCoordinate         Code = "COORDINATE_ERROR"
	CodeCache              Code = "CACHE_ERROR"
	CodeConfiguration      Code = "CONFIGURATION_ERROR"
)

// codeInfo pins each code to its default HTTP status and retry hint.
var codeInfo = map[Code]struct {
	status    int
	retryable bool
}{
	CodeAuth:               {http.StatusUnauthorized, false},
	CodeAPIKey:             {http.StatusUnauthorized, false},
	CodeAuthorization:      {http.StatusForbidden, false},
	CodeValidation:         {http.StatusBadRequest, false},
	CodeSchemaValidation:   {http.StatusBadRequest, false},
	CodeNotFound:           {http.StatusNotFound, false},
	CodeRateLimit:          {http.StatusTooManyRequests, true},
	CodeExternalAPI:        {http.StatusBadGateway, true},
	CodeTimeout:            {http.StatusGatewayTimeout, true},
	CodeServiceUnavailable: {http.StatusServiceUnavailable, true},
	CodeInternal:           {http.StatusInternalServerError, false},
	CodeCoordinate:         {http.StatusBadRequest, false},
	CodeCache:              {http.StatusInternalServerError, false},
	CodeConfiguration:      {http.StatusInternalServerError, false},
}

// Known reports whether code belongs to the taxonomy.
func Known(code Code) bool {
	_, ok := codeInfo[code]
	return ok
}

// HTTPStatus returns the default HTTP status for a code. Unknown codes
// map to 500.
func HTTPStatus(code Code) int {
	if info, ok := codeInfo[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Retryable returns the default retry hint for a code.
func Retryable(code Code) bool {
	return codeInfo[code].retryable
}

// Error is the single error type used across component boundaries. It
// carries the taxonomy code, an operator-facing message, the HTTP status
// the gateway should emit, a retry hint for API consumers, and optional
// structured details.
type Error struct {
	Code      Code
	Message   string
	Status    int
	Retryable bool
	Details   map[string]any

	cause error
}

// New creates an Error with the code's default status and retry hint.
func New(code Code, message string) *Error {
	info := codeInfo[code]
	status := info.status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &Error{
		Code:      code,
		Message:   message,
		Status:    status,
		Retryable: info.retryable,
	}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error that records cause for errors.Is/As chains.
func Wrap(code Code, message string, cause error) *Error {
	e := New(code, message)
	e.cause = cause
	return e
}

// WithDetail attaches one key/value pair and returns the error for
// chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithDetails merges details into the error and returns it for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// WithRetryable overrides the code's default retry hint. Used by the
// upstream client, where a 4xx answer shares the external-API code with
// 5xx answers but must not be retried.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// From normalizes any error into an *Error. Errors already carrying a
// taxonomy code pass through; everything else becomes an
// INTERNAL_SERVER_ERROR wrapping the original.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(CodeInternal, "unexpected error", err)
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
