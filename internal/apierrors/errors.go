// Package apierrors defines the error taxonomy surfaced across the SQURIL
// engine: the domain sentinel kinds the query language and restore engine
// raise, plus a stable code/hint mapping for callers that want to report
// failures programmatically rather than match on error strings.
package apierrors

import (
	"errors"
	"fmt"
)

// ParseError reports a syntactic or structural violation of the query
// grammar. Parsing is never partial: either a full UriQuery is produced or
// this error is returned.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "parse error: " + e.Reason }

// NewParseError builds a ParseError with a formatted reason.
func NewParseError(format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// DataIntegrityError reports that a restore found more than one row sharing
// a primary-key value, making the replay ambiguous.
type DataIntegrityError struct {
	Reason string
}

func (e *DataIntegrityError) Error() string { return "data integrity error: " + e.Reason }

// NewDataIntegrityError builds a DataIntegrityError with a formatted reason.
func NewDataIntegrityError(format string, args ...any) *DataIntegrityError {
	return &DataIntegrityError{Reason: fmt.Sprintf(format, args...)}
}

// OperationNotPermittedError reports an attempt to update, set, or alter an
// audit table directly through the public API.
type OperationNotPermittedError struct {
	Reason string
}

func (e *OperationNotPermittedError) Error() string { return "operation not permitted: " + e.Reason }

// NewOperationNotPermittedError builds an OperationNotPermittedError.
func NewOperationNotPermittedError(format string, args ...any) *OperationNotPermittedError {
	return &OperationNotPermittedError{Reason: fmt.Sprintf(format, args...)}
}

// Code is a stable, machine-readable error identifier for SDK consumption.
type Code string

// Error codes for SDK consumption. Stable, used for programmatic handling.
const (
	CodeParseError            Code = "PARSE_ERROR"
	CodeDataIntegrity         Code = "DATA_INTEGRITY_ERROR"
	CodeOperationNotPermitted Code = "OPERATION_NOT_PERMITTED"
	CodeTableNotFound         Code = "TABLE_NOT_FOUND"
	CodeUniqueViolation       Code = "UNIQUE_VIOLATION"
	CodeInternalError         Code = "INTERNAL_ERROR"
)

// APIError represents a structured error response.
// Code is a stable identifier for SDK/client error handling.
// Message describes what went wrong.
// Hint provides actionable guidance to resolve the issue.
type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func (e APIError) Error() string { return e.Message }

// Describe classifies err into a stable APIError, recognizing the domain
// sentinels above plus the driver-level shapes both backends raise.
func Describe(err error) APIError {
	var parseErr *ParseError
	var integrityErr *DataIntegrityError
	var permErr *OperationNotPermittedError

	switch {
	case errors.As(err, &parseErr):
		return APIError{
			Code:    CodeParseError,
			Message: err.Error(),
			Hint:    "Check the query against the select/where/order/range/set/group_by grammar.",
		}
	case errors.As(err, &integrityErr):
		return APIError{
			Code:    CodeDataIntegrity,
			Message: err.Error(),
			Hint:    "The primary_key path does not uniquely identify rows in this table.",
		}
	case errors.As(err, &permErr):
		return APIError{
			Code:    CodeOperationNotPermitted,
			Message: err.Error(),
			Hint:    "Audit tables cannot be updated, altered, or targeted by set= directly.",
		}
	case IsUniqueViolation(err):
		return APIError{
			Code:    CodeUniqueViolation,
			Message: err.Error(),
			Hint:    "A row with identical content already exists in this table.",
		}
	case IsMissingRelation(err):
		return APIError{
			Code:    CodeTableNotFound,
			Message: err.Error(),
			Hint:    "The table does not exist; tables are created on first insert.",
		}
	default:
		return APIError{
			Code:    CodeInternalError,
			Message: err.Error(),
			Hint:    "Unexpected backend failure; see the wrapped error for the underlying cause.",
		}
	}
}
