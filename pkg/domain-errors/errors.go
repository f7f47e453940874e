// Package dErrors provides code-carrying domain errors.
//
// Services return these so transports can translate outcomes into status
// codes without inspecting error strings. Infrastructure facts (missing
// rows, expired leases) live in pkg/platform/sentinel; services wrap them
// into domain errors at the service boundary.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the class of a domain error.
type Code string

const (
	// CodeValidation marks input rejected before persistence: bad window
	// ordering, empty justification fields, unknown references.
	CodeValidation Code = "validation_error"

	// CodeBadRequest marks transport-level parse failures.
	CodeBadRequest Code = "bad_request"

	// CodeNotFound marks a lookup for an entity that does not exist.
	CodeNotFound Code = "not_found"

	// CodeInvalidState marks an operation that is not legal in the
	// entity's current status (e.g. deciding on a terminal request,
	// cancelling an already-active one).
	CodeInvalidState Code = "invalid_state"

	// CodeNoCapacity marks credential pool exhaustion. The lifecycle
	// retries these internally on capacity release; callers see them only
	// as a surfaced, non-fatal condition.
	CodeNoCapacity Code = "no_capacity"

	// CodeProvisioningFailure marks connector activation retry exhaustion.
	// The request stays in its last-good status with a failure flag.
	CodeProvisioningFailure Code = "provisioning_failure"

	// CodeDeactivationFailure marks connector deactivation retry
	// exhaustion. Raised as an operator alert; the credential must never
	// stay silently active.
	CodeDeactivationFailure Code = "deactivation_failure"

	// CodePartialFailure marks a session log pull where at least one
	// category failed while others were stored.
	CodePartialFailure Code = "partial_failure"

	// CodeUnauthorized marks a decision from an actor who is not the
	// required approver for the current step.
	CodeUnauthorized Code = "unauthorized"

	// CodeTimeout marks an aborted operation (context cancelled or
	// deadline exceeded while holding a lock).
	CodeTimeout Code = "timeout"

	// CodeInternal marks everything else. Descriptions are not exposed to
	// callers for this code.
	CodeInternal Code = "internal_error"
)

// DomainError couples a code with a human-readable description and an
// optional wrapped cause.
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.cause }

// New constructs a domain error with the given code and message.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	return &DomainError{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error
// with the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the description from err. Internal errors return an
// empty string so infrastructure details never leak to callers.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) && de.Code != CodeInternal {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code onto the HTTP status the transport layer
// should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeNoCapacity:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeProvisioningFailure, CodeDeactivationFailure, CodePartialFailure:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
