package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an AppError for logging and status selection.
type ErrorKind string

// Error kinds surfaced to HTTP callers.
const (
	KindShapeValidation      ErrorKind = "shape-validation"
	KindStructuralValidation ErrorKind = "structural-validation"
	KindBadRequest           ErrorKind = "bad-request"
	KindNotFound             ErrorKind = "not-found"
	KindConflict             ErrorKind = "conflict"
	KindSerializationFailure ErrorKind = "serialization-failure"
	KindUpstream             ErrorKind = "upstream"
	KindDatabase             ErrorKind = "database"
	KindUnauthorized         ErrorKind = "unauthorized"
	KindUnexpected           ErrorKind = "unexpected"
)

// Stable codes that are not derived from a validation rule.
const (
	CodeRouteNotFound        = "app-err-01"
	CodeInvalidStructure     = "app-err-04"
	CodeDBConnection         = "db-err-01"
	CodeDBGeneric            = "db-err-02"
	CodeSerializationFailure = "40001"
	CodeUnexpected           = "something-bad-occured-error"
	CodeNotAuthorized        = "not-authorized"
)

// ErrorDetail is one {message, code} entry of an error response.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// AppError is an error that is safe to return to an HTTP caller.
type AppError struct {
	Status  int
	Kind    ErrorKind
	Details []ErrorDetail
	Err     error
}

func (e *AppError) Error() string {
	msg := string(e.Kind)
	if len(e.Details) > 0 {
		msg = fmt.Sprintf("%s: %s (%s)", e.Kind, e.Details[0].Message, e.Details[0].Code)
		if len(e.Details) > 1 {
			msg = fmt.Sprintf("%s and %d more", msg, len(e.Details)-1)
		}
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}

func detail(message, code string) []ErrorDetail {
	return []ErrorDetail{{Message: message, Code: code}}
}

// NewShapeValidationError reports payload fields that failed shape validation.
func NewShapeValidationError(details []ErrorDetail) *AppError {
	return &AppError{Status: http.StatusBadRequest, Kind: KindShapeValidation, Details: details}
}

// NewStructuralValidationError reports cross-field violations of a column definition.
func NewStructuralValidationError(details []ErrorDetail) *AppError {
	return &AppError{Status: http.StatusBadRequest, Kind: KindStructuralValidation, Details: details}
}

// NewBadRequestError reports a request rejected before reaching a service.
func NewBadRequestError(message, code string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Kind: KindBadRequest, Details: detail(message, code)}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(message, code string) *AppError {
	return &AppError{Status: http.StatusNotFound, Kind: KindNotFound, Details: detail(message, code)}
}

// NewConflictError reports a request that conflicts with stored state.
func NewConflictError(message, code string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Kind: KindConflict, Details: detail(message, code)}
}

// NewSerializationFailureError reports a transaction aborted by a concurrent writer.
func NewSerializationFailureError(err error) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Kind:    KindSerializationFailure,
		Details: detail("The profile is being modified concurrently. Retry the request", CodeSerializationFailure),
		Err:     err,
	}
}

// NewUpstreamError reports a failed call to a collaborating service.
func NewUpstreamError(message, code string, err error) *AppError {
	return &AppError{Status: http.StatusBadRequest, Kind: KindUpstream, Details: detail(message, code), Err: err}
}

// NewDatabaseError reports a storage failure. Empty message or code fall back to generic values.
func NewDatabaseError(message, code string, err error) *AppError {
	if message == "" {
		message = "Database Error"
	}
	if code == "" {
		code = CodeDBGeneric
	}
	return &AppError{Status: http.StatusServiceUnavailable, Kind: KindDatabase, Details: detail(message, code), Err: err}
}

// NewDBConnectionError reports that no storage connection could be acquired.
func NewDBConnectionError(err error) *AppError {
	return NewDatabaseError("Unable to connect to Database", CodeDBConnection, err)
}

// NewUnauthorizedError reports a missing or invalid bearer identity.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Kind: KindUnauthorized, Details: detail(message, CodeNotAuthorized)}
}

// NewUnexpectedError hides err behind the generic 500 response.
func NewUnexpectedError(err error) *AppError {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Kind:    KindUnexpected,
		Details: detail("Something Bad Occured", CodeUnexpected),
		Err:     err,
	}
}
