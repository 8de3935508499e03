package common

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories surfaced by the pipeline.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is bad local input; never retried.
	KindValidation
	// KindRemoteRejected means the service understood the request and refused it.
	KindRemoteRejected
	// KindRemoteUnavailable covers transport and availability failures.
	KindRemoteUnavailable
	// KindTimeout means a wait deadline elapsed.
	KindTimeout
	// KindCancelled means the caller cancelled the run.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRemoteRejected:
		return "remote_rejected"
	case KindRemoteUnavailable:
		return "remote_unavailable"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Error codes carried alongside a Kind.
const (
	CodeNoValidDocuments      = "NO_VALID_DOCUMENTS"
	CodeAllUploadsFailed      = "ALL_UPLOADS_FAILED"
	CodeContainerCreateFailed = "CONTAINER_CREATE_FAILED"
	CodeMalformedResponse     = "MALFORMED_RESPONSE"
	CodeEmptyIdentifier       = "EMPTY_IDENTIFIER"
	CodeNotPDF                = "NOT_PDF"
	CodeFileNotFound          = "FILE_NOT_FOUND"
	CodeUnknownDocumentType   = "UNKNOWN_DOCUMENT_TYPE"
	CodeConfig                = "CONFIG_ERROR"
)

// Error represents application-specific errors.
type Error struct {
	Kind       Kind
	Code       string
	Op         string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.Code != "" {
		prefix += "/" + e.Code
	}
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	msg := prefix
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Sentinel causes for local validation failures.
var (
	ErrFileNotFound    = errors.New("file not found")
	ErrNotPDF          = errors.New("file is not a PDF")
	ErrEmptyIdentifier = errors.New("identifier is empty")
	ErrUnknownType     = errors.New("document type not in configuration")
)

// NewError builds an Error of the given kind.
func NewError(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Validation builds a KindValidation error.
func Validation(code, message string, cause error) *Error {
	return NewError(KindValidation, code, message, cause)
}

// Rejected builds a KindRemoteRejected error carrying the service's message verbatim.
func Rejected(op string, status int, message string) *Error {
	return &Error{Kind: KindRemoteRejected, Op: op, StatusCode: status, Message: message}
}

// Unavailable builds a KindRemoteUnavailable error.
func Unavailable(op string, status int, message string, cause error) *Error {
	return &Error{Kind: KindRemoteUnavailable, Op: op, StatusCode: status, Message: message, Cause: cause}
}

// Cancelled wraps a context cancellation.
func Cancelled(op string, cause error) *Error {
	return &Error{Kind: KindCancelled, Op: op, Message: "cancelled by caller", Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain. Bare context
// errors map to KindCancelled / KindTimeout.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindUnknown
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether a caller may retry the failed operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindRemoteUnavailable
}

// WrapError annotates err with message, preserving the chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
