// Package domainerrors defines coded errors for the DID pipeline.
//
// Stages wrap their failures in a coded error so the orchestrator can decide
// whether a failure blocks subsequent stages, and so the HTTP layer can map
// errors to responses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies an error class.
type Code string

const (
	// CodeValidation marks missing or malformed required input. Fatal
	// before the affected stage runs.
	CodeValidation Code = "validation"

	// CodeKeyGeneration marks a failure of the cryptographic capability.
	// Fatal to identifier creation.
	CodeKeyGeneration Code = "key_generation"

	// CodeMalformedOperation marks a create operation missing its required
	// sub-fields. Fatal to identifier creation.
	CodeMalformedOperation Code = "malformed_operation"

	// CodeSubmission marks an anchoring submission tier failure. Never
	// surfaces past the degraded tier.
	CodeSubmission Code = "submission"

	// CodeSigningService marks a custodial signing service failure. Fatal
	// to settlement, not to the already-checkpointed identifier.
	CodeSigningService Code = "signing_service"

	// CodePollTimeout marks confirmation poll budget exhaustion. Advisory.
	CodePollTimeout Code = "poll_timeout"

	// CodePersistence marks a checkpoint write failure. Logged, never
	// unwinds a completed stage.
	CodePersistence Code = "persistence"

	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal_error"
)

// Error carries a code plus a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the code from err, walking the wrap chain. Unrecognized
// errors report CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
