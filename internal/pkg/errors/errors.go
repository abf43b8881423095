// Package errors provides custom error types and error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes.
const (
	// Input errors.
	CodeValidation     = "VALIDATION_ERROR"
	CodeInputAlignment = "INPUT_ALIGNMENT"
	CodeIO             = "IO_ERROR"

	// Evaluation errors.
	CodeEmptyPartition = "EMPTY_PARTITION"
	CodeRankOutOfRange = "RANK_OUT_OF_RANGE"

	// Infrastructure errors.
	CodeInternal    = "INTERNAL_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// InputAlignmentError reports query and completion streams of different lengths.
// A negative line count means the stream length is unknown.
func InputAlignmentError(queries, completions int) *AppError {
	err := New(CodeInputAlignment, "query and completion streams have different lengths")
	if queries >= 0 {
		err = err.WithDetail("queries", fmt.Sprintf("%d", queries))
	}
	if completions >= 0 {
		err = err.WithDetail("completions", fmt.Sprintf("%d", completions))
	}
	return err
}

// EmptyPartitionError reports a mean requested over a partition with no records.
func EmptyPartitionError(partition string) *AppError {
	return New(CodeEmptyPartition, fmt.Sprintf("%s partition has no records", partition)).
		WithDetail("partition", partition)
}

// RankOutOfRangeError reports a rank that does not fit its candidate list.
func RankOutOfRangeError(line, rank, candidates int) *AppError {
	return New(CodeRankOutOfRange, fmt.Sprintf("rank %d exceeds %d candidates", rank, candidates)).
		WithDetail("line", fmt.Sprintf("%d", line))
}

// IOError wraps a failure to read or write a file.
func IOError(path string, err error) *AppError {
	msg := "i/o failure"
	if path != "" {
		msg = fmt.Sprintf("i/o failure on %s", path)
	}
	return Wrap(CodeIO, msg, err)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// ServiceUnavailableError creates a service unavailable error.
func ServiceUnavailableError(service string) *AppError {
	message := "service unavailable"
	if service != "" {
		message = fmt.Sprintf("%s is unavailable", service)
	}
	return New(CodeUnavailable, message)
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return CodeOf(err) == CodeValidation
}

// IsInputAlignment checks if error is an input alignment error.
func IsInputAlignment(err error) bool {
	return CodeOf(err) == CodeInputAlignment
}

// IsEmptyPartition checks if error is an empty partition error.
func IsEmptyPartition(err error) bool {
	return CodeOf(err) == CodeEmptyPartition
}

// IsRankOutOfRange checks if error is a rank out of range error.
func IsRankOutOfRange(err error) bool {
	return CodeOf(err) == CodeRankOutOfRange
}
