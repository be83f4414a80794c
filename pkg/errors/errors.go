// Package errors provides structured error handling for resbridge
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents unknown attribute, list or listener ids
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeTimeout represents a hook that overran its time budget
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents back-end connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConversion represents a missing or failing value converter
	ErrorTypeConversion ErrorType = "conversion"
	// ErrorTypeIllegalState represents a call on a closed connector
	ErrorTypeIllegalState ErrorType = "illegal_state"
	// ErrorTypeUnsupported represents an operation that is not supported
	ErrorTypeUnsupported ErrorType = "unsupported"
)

var (
	// ErrClosed is the cause of every illegal-state error raised by a closed connector.
	ErrClosed = errors.New("connector is closed")
	// ErrUnsupported is the cause of every unsupported-operation error.
	ErrUnsupported = errors.New("operation not supported")
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Closed returns the illegal-state error raised by every call on a closed connector.
func Closed(connector string) *Error {
	e := Wrap(ErrClosed, ErrorTypeIllegalState, "connector "+connector+" is closed")
	return e.WithDetail("connector", connector)
}

// Unsupported returns an unsupported-operation error for op.
func Unsupported(op string) *Error {
	return Wrap(ErrUnsupported, ErrorTypeUnsupported, op)
}

// Conversion returns a conversion error carrying the offending value and target type name.
func Conversion(value interface{}, target string) *Error {
	e := Newf(ErrorTypeConversion, "cannot convert %v (%T) to %s", value, value, target)
	return e.WithDetail("value", value).WithDetail("target", target)
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
