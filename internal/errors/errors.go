package errors

import (
	"errors"
	"fmt"
)

const (
	ErrFailedPrecond   ErrorType = "Failed Precondition"
	ErrAlreadyExists   ErrorType = "Resource Already Exists"
	ErrInvalidArgument ErrorType = "Invalid Argument"
	ErrNotFound        ErrorType = "Not Found"
	ErrForbidden       ErrorType = "Forbidden"
	ErrConflict        ErrorType = "Conflict"
	ErrInternalError   ErrorType = "Internal Error"
)

type ErrorType string

func (e ErrorType) String() string {
	return string(e)
}

type DomainError struct {
	ErrorType  ErrorType
	Entity     string
	Message    string
	WrappedErr error
}

func NewError(errType ErrorType, entity, msg string) *DomainError {
	return &DomainError{
		ErrorType: errType,
		Entity:    entity,
		Message:   msg,
	}
}

func InvalidArgument(entity, msg string) *DomainError {
	return NewError(ErrInvalidArgument, entity, msg)
}

func NotFound(entity, msg string) *DomainError {
	return NewError(ErrNotFound, entity, msg)
}

func AlreadyExists(entity, msg string) *DomainError {
	return NewError(ErrAlreadyExists, entity, msg)
}

func FailedPrecondition(entity, msg string) *DomainError {
	return NewError(ErrFailedPrecond, entity, msg)
}

func Forbidden(entity, msg string) *DomainError {
	return NewError(ErrForbidden, entity, msg)
}

func Conflict(entity, msg string) *DomainError {
	return NewError(ErrConflict, entity, msg)
}

func InternalError(entity, msg string, err error) *DomainError {
	return &DomainError{
		ErrorType:  ErrInternalError,
		Entity:     entity,
		Message:    msg,
		WrappedErr: err,
	}
}

// Wrap keeps the error type of a wrapped DomainError, otherwise the result is internal
func Wrap(entity, msg string, err error) error {
	if err == nil {
		return nil
	}

	var de *DomainError
	if errors.As(err, &de) {
		return &DomainError{
			ErrorType:  de.ErrorType,
			Entity:     entity,
			Message:    msg,
			WrappedErr: err,
		}
	}

	return InternalError(entity, msg, err)
}

func AddErrContext(err error, entity, msg string) error {
	return Wrap(entity, msg, err)
}

func (e *DomainError) Error() string {
	if e.WrappedErr == nil {
		return fmt.Sprintf("%s: %s", e.Entity, e.Message)
	}

	var de *DomainError
	if errors.As(e.WrappedErr, &de) {
		return fmt.Sprintf("%s: %s: %s", e.Entity, e.Message, de.Error())
	}
	return fmt.Sprintf("%s: %s: %s", e.Entity, e.Message, e.WrappedErr.Error())
}

func (e *DomainError) DebugString() string {
	wrappedError := ""
	if e.WrappedErr != nil {
		wrappedError = e.WrappedErr.Error()
	}

	return fmt.Sprintf("%v for Entity[%s] with msg[%s] %s", e.ErrorType, e.Entity, e.Message, wrappedError)
}

func (e *DomainError) Unwrap() error {
	return e.WrappedErr
}

// IsErrorType reports whether the outermost DomainError in the chain has the given type
func IsErrorType(err error, errType ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.ErrorType == errType
	}
	return false
}

func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.ErrorType
	}
	return ErrInternalError
}

// Message returns the human-readable reason of the innermost DomainError in the chain
func Message(err error) string {
	var msg string
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			break
		}
		msg = de.Message
		err = de.WrappedErr
	}
	if msg == "" && err != nil {
		return err.Error()
	}
	return msg
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func New(text string) error {
	return errors.New(text)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}
