package main

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBookNotFound  = errors.New("book not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateBook = errors.New("book title or isbn already exists")
	ErrNoFileFound   = errors.New("no file found")
)

// ErrorKind classifies failures so that each one maps to a single status code.
type ErrorKind uint8

const (
	KindUpstream ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindDeleted
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "notfound"
	case KindConflict:
		return "conflict"
	case KindDeleted:
		return "deleted"
	default:
		return "upstream"
	}
}

// AppError is the error type returned by the books service and the
// request validators. Message is safe to be sent back to the client.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind to its http status code.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindConflict, KindDeleted:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func NewValidationError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Kind: KindNotFound, Message: message, Err: err}
}

func NewConflictError(message string, err error) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Err: err}
}

func NewDeletedError(message string) *AppError {
	return &AppError{Kind: KindDeleted, Message: message}
}

// NewUpstreamError wraps a store or uploader failure. The raw error
// message is surfaced to the client.
func NewUpstreamError(err error) *AppError {
	return &AppError{Kind: KindUpstream, Message: err.Error(), Err: err}
}

// ErrorStatusAndMessage resolves the status code and client message of any error.
// Untyped errors are considered upstream failures.
func ErrorStatusAndMessage(err error) (int, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode(), appErr.Message
	}
	return http.StatusInternalServerError, err.Error()
}
