// Package errors provides structured error types for the subparticles tool.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and library packages
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map one-to-one onto the geometry-resolution failure modes: a missing
// or ambiguous geometry specification, malformed vector/matrix input, an
// unrecognized point group, and the two subgroup-search outcomes. I/O level
// codes cover the STAR table, job-lineage, and external-tool collaborators.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnknownSymmetryGroup, "unknown symmetry group: %s", name)
//	if errors.Is(err, errors.ErrCodeUnknownSymmetryGroup) {
//	    // Handle unknown group
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidStar, origErr, "parse %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Geometry resolution errors
	ErrCodeMissingGeometrySpec Code = "MISSING_GEOMETRY_SPEC"
	ErrCodeInvalidGeometry     Code = "INVALID_GEOMETRY"

	// Symmetry errors
	ErrCodeUnknownSymmetryGroup    Code = "UNKNOWN_SYMMETRY_GROUP"
	ErrCodeNoSubgroupFound         Code = "NO_SUBGROUP_FOUND"
	ErrCodeSubgroupSearchExhausted Code = "SUBGROUP_SEARCH_EXHAUSTED"

	// Warning-level: pixel size could not be determined and was defaulted.
	ErrCodeAmbiguousPixelSize Code = "AMBIGUOUS_PIXEL_SIZE"

	// Table and file errors
	ErrCodeInvalidStar  Code = "INVALID_STAR"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Job lineage errors
	ErrCodeInvalidJob Code = "INVALID_JOB"

	// External tool errors
	ErrCodeToolNotFound Code = "TOOL_NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
