// Package errdefs defines the error taxonomy shared by all engine
// domains. Every failure surfaced by the engine is either an *Error
// carrying a stable code, or wraps one.
package errdefs

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error code.
type Code string

// Generic codes (000-099).
const (
	CodeUnknown      Code = "00001"
	CodeInvalidInput Code = "00002"
	CodeInternal     Code = "00003"
	CodeCancelled    Code = "00004"
)

// Registry codes (100-199).
const (
	CodeDuplicateAlias  Code = "00100"
	CodeSourceNotFound  Code = "00101"
	CodeProtectedSource Code = "00102"
	CodeRegistryIO      Code = "00103"
)

// Sync codes (200-299).
const (
	CodeFetchFailed Code = "00200"
	CodeUnreachable Code = "00201"
)

// Parse codes (300-399).
const (
	CodeMalformedKey Code = "00300"
	CodeSchema       Code = "00301"
	CodeDocument     Code = "00302"
)

// Resolution codes (400-499).
const (
	CodeAmbiguousTag          Code = "00400"
	CodeModelNotFound         Code = "00401"
	CodeConflictingDefinition Code = "00402"
	CodeUnknownSourceAlias    Code = "00403"
	CodeBadReference          Code = "00404"
)

// Build codes (500-599).
const (
	CodeBuilderFailed  Code = "00500"
	CodeBuildExhausted Code = "00501"
	CodeBundleCorrupt  Code = "00502"
)

// Error is the unified error type. Domain names the component that
// produced the error (registry, sync, parse, resolve, build).
type Error struct {
	Code    Code
	Domain  string
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on code, so sentinel values compare equal to wrapped
// instances carrying extra details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy with an extra detail attached. The
// receiver is not mutated, so package-level sentinels stay clean.
func (e *Error) WithDetails(key string, value any) *Error {
	c := e.clone()
	c.Details[key] = value
	return c
}

// WithCause returns a copy with the underlying cause attached.
func (e *Error) WithCause(err error) *Error {
	c := e.clone()
	c.Cause = err
	return c
}

// WithMessagef returns a copy with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	c := e.clone()
	c.Message = fmt.Sprintf(format, args...)
	return c
}

func (e *Error) clone() *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	return &Error{
		Code:    e.Code,
		Domain:  e.Domain,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// New creates an error without a domain.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]any)}
}

// NewDomain creates a domain-scoped error.
func NewDomain(domain string, code Code, message string) *Error {
	return &Error{Code: code, Domain: domain, Message: message, Details: make(map[string]any)}
}

// Wrap wraps err in a domain-scoped error.
func Wrap(err error, domain string, code Code, message string) *Error {
	return &Error{Code: code, Domain: domain, Message: message, Cause: err, Details: make(map[string]any)}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or CodeUnknown.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeUnknown
}

// IsNotFound reports whether err is a lookup miss of any domain.
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case CodeSourceNotFound, CodeModelNotFound:
		return true
	}
	return false
}

// IsConflict reports whether err is a uniqueness or precedence conflict.
func IsConflict(err error) bool {
	switch CodeOf(err) {
	case CodeDuplicateAlias, CodeConflictingDefinition:
		return true
	}
	return false
}

// IsDegraded reports whether err describes a non-fatal condition that
// leaves previously committed state serving (sync failures).
func IsDegraded(err error) bool {
	switch CodeOf(err) {
	case CodeFetchFailed, CodeUnreachable:
		return true
	}
	return false
}

// ExitCode maps an error to the process exit code used by the CLI.
// Each taxonomy band gets its own code so scripts can branch on it.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CodeOf(err) {
	case CodeDuplicateAlias, CodeSourceNotFound, CodeProtectedSource, CodeRegistryIO:
		return 2
	case CodeFetchFailed, CodeUnreachable:
		return 3
	case CodeMalformedKey, CodeSchema, CodeDocument:
		return 4
	case CodeAmbiguousTag, CodeModelNotFound, CodeConflictingDefinition,
		CodeUnknownSourceAlias, CodeBadReference:
		return 5
	case CodeBuilderFailed, CodeBuildExhausted, CodeBundleCorrupt:
		return 6
	case CodeInvalidInput:
		return 64
	default:
		return 1
	}
}
