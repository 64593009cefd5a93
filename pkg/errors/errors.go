package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so sentinels below work
// with errors.Is regardless of message or wrapped cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotOnDuty:
		return http.StatusForbidden
	case CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case CodeAlreadyCompleted, CodeConflict:
		return http.StatusConflict
	case CodeNoRoomAvailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	CodeNotFound ErrorCode = iota + 1000
	CodeBadRequest
	CodeUnauthorized
	CodeForbidden
	CodeInternal
	CodeInvalidTransition
	CodeAlreadyCompleted
	CodeNoRoomAvailable
	CodeNotOnDuty
	CodeStorage
	CodeConflict
)

// Sentinels for errors.Is
var (
	ErrNotFound          = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrInvalidTransition = &AppError{Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrAlreadyCompleted  = &AppError{Code: CodeAlreadyCompleted, Message: "appointment already completed"}
	ErrNoRoomAvailable   = &AppError{Code: CodeNoRoomAvailable, Message: "no room available"}
	ErrNotOnDuty         = &AppError{Code: CodeNotOnDuty, Message: "not currently on duty"}
	ErrStorage           = &AppError{Code: CodeStorage, Message: "storage error"}
	ErrConflict          = &AppError{Code: CodeConflict, Message: "conflict"}
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

// InvalidTransition reports a patient-flow change outside the allowed table.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot change status from %q to %q", from, to),
	}
}

func AlreadyCompleted(resource string) *AppError {
	return &AppError{
		Code:    CodeAlreadyCompleted,
		Message: fmt.Sprintf("%s already completed", resource),
	}
}

func NoRoomAvailable(roomType string) *AppError {
	return &AppError{
		Code:    CodeNoRoomAvailable,
		Message: fmt.Sprintf("no %s room available", roomType),
	}
}

func NotOnDuty(staffKind string) *AppError {
	return &AppError{
		Code:    CodeNotOnDuty,
		Message: fmt.Sprintf("%s is not currently on duty", staffKind),
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

// Storage wraps a persistence failure. Errors that already carry an
// AppError code pass through unchanged.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return &AppError{
		Code:    CodeStorage,
		Message: "storage error",
		Err:     err,
	}
}

// As is a thin alias so callers need not import both errors packages.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is a thin alias so callers need not import both errors packages.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
