package errors

import (
	"fmt"
	"net/http"
)

const (
	ExitCodeWarn            = 10
	ExitCodeValidationError = 30
	ExitCodeForbidden       = 40
	ExitCodeConflict        = 50
)

// CmdError is a custom error type for command errors, it will contain the error and the exit code
type CmdError struct {
	Cause error
	Code  int
}

func (e *CmdError) Error() string { return e.Cause.Error() }

func (e *CmdError) Unwrap() error { return e.Cause }

func NewCmdError(cause error, code int) *CmdError {
	return &CmdError{
		Cause: cause,
		Code:  code,
	}
}

func NewWarnErrorf(format string, args ...any) *CmdError {
	return NewCmdError(fmt.Errorf(format, args...), ExitCodeWarn)
}

func NewValidationErrorf(format string, args ...any) *CmdError {
	return NewCmdError(fmt.Errorf(format, args...), ExitCodeValidationError)
}

// FromHTTPStatus picks the exit code for a rejected api request
func FromHTTPStatus(cause error, status int) *CmdError {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return NewCmdError(cause, ExitCodeValidationError)
	case http.StatusForbidden:
		return NewCmdError(cause, ExitCodeForbidden)
	case http.StatusConflict:
		return NewCmdError(cause, ExitCodeConflict)
	case http.StatusNotFound:
		return NewCmdError(cause, ExitCodeWarn)
	default:
		return NewCmdError(cause, 1)
	}
}
