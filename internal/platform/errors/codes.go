// Package errors provides structured domain errors shared by storage, import
// and the admin HTTP surface.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeNotFound  Code = "NOT_FOUND"
	CodeProtected Code = "PROTECTED"
	CodeConflict  Code = "CONFLICT"

	// Validation errors
	CodeValidation     Code = "VALIDATION"
	CodeInvalidLookup  Code = "INVALID_LOOKUP"
	CodeInvalidFilter  Code = "INVALID_FILTER"
	CodeInvalidOrderBy Code = "INVALID_ORDER_BY"

	// Import errors
	CodeImportFormat     Code = "IMPORT_UNSUPPORTED_FORMAT"
	CodeImportInvalidRow Code = "IMPORT_INVALID_ROW"

	// Auth errors
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation,
		CodeInvalidLookup,
		CodeInvalidFilter,
		CodeInvalidOrderBy,
		CodeImportFormat,
		CodeImportInvalidRow:
		return http.StatusBadRequest

	case CodeProtected, CodeConflict:
		return http.StatusConflict

	case CodeNotFound:
		return http.StatusNotFound

	case CodeUnauthenticated:
		return http.StatusUnauthorized

	case CodePermissionDenied:
		return http.StatusForbidden

	default:
		return http.StatusInternalServerError
	}
}
