package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

const (
	CodeUnauthorized         = "unauthorized"
	CodeForbidden            = "forbidden"
	CodeValidation           = "validation_error"
	CodeNotFound             = "not_found"
	CodeTestNotFound         = "test_not_found"
	CodeCooldownActive       = "cooldown_active"
	CodeGenerationInProgress = "generation_in_progress"
	CodeUpstream             = "upstream_error"
	CodeMalformedResponse    = "malformed_response"
	CodeEmptyGeneration      = "empty_generation"
	CodeGenerationFailed     = "generation_failed"
	CodeNoActiveSession      = "no_active_session"
	CodeInvalidSubmission    = "invalid_submission"
	CodeConfiguration        = "configuration_error"
	CodeMethodNotAllowed     = "method_not_allowed"
	CodeInternal             = "internal"
)

func Unauthorized(err error) *Error { return New(http.StatusUnauthorized, CodeUnauthorized, err) }
func Forbidden(err error) *Error    { return New(http.StatusForbidden, CodeForbidden, err) }
func Validation(err error) *Error   { return New(http.StatusBadRequest, CodeValidation, err) }
func NotFound(err error) *Error     { return New(http.StatusNotFound, CodeNotFound, err) }
func Internal(err error) *Error     { return New(http.StatusInternalServerError, CodeInternal, err) }

// Validationf is Validation with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Errorf(format, args...))
}

// From returns the first *Error in err's chain, or wraps err as an internal
// error. A nil err yields nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// HasCode reports whether err carries an *Error with the given code.
func HasCode(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
