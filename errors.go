package formatkit

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes format errors for programmatic handling.
type ErrorKind string

const (
	// KindMismatch signals that a set of paths does not satisfy a format's
	// constraints. It is the only kind swallowed internally (by Matches and
	// content scanning); everything else propagates.
	KindMismatch ErrorKind = "mismatch"

	// KindConversion signals that no converter, or more than one ambiguous
	// converter, exists between a source and target format.
	KindConversion ErrorKind = "conversion"

	// KindRecognition signals a malformed or unresolvable MIME / MIME-like
	// identifier.
	KindRecognition ErrorKind = "recognition"

	// KindDefinition signals a structural misuse of the format declaration
	// API - a programmer error in a format definition.
	KindDefinition ErrorKind = "definition"

	// KindNotFound signals that one or more paths handed to a FileSet do
	// not exist on disk.
	KindNotFound ErrorKind = "not-found"

	// KindCopyMode signals that no requested copy mode is supported by the
	// source/destination filesystem pair.
	KindCopyMode ErrorKind = "copy-mode"

	// KindExtras signals that no extras implementation (load, save, ...)
	// is registered for a format.
	KindExtras ErrorKind = "extras"
)

// Error is the error type returned throughout formatkit. It carries a kind
// for programmatic handling and, where useful, the candidates that were
// considered (ambiguous converters, searched namespaces, ...).
type Error struct {
	Kind       ErrorKind
	Message    string
	Candidates []string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	if len(e.Candidates) > 0 {
		msg += ": " + strings.Join(e.Candidates, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func mismatchError(format string, args ...any) *Error {
	return NewError(KindMismatch, format, args...)
}

// IsKind reports whether err is a formatkit Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// IsMismatch reports whether an error indicates a format mismatch.
func IsMismatch(err error) bool { return IsKind(err, KindMismatch) }

// IsRecognition reports whether an error indicates an unresolvable
// MIME or MIME-like identifier.
func IsRecognition(err error) bool { return IsKind(err, KindRecognition) }

// IsConversion reports whether an error indicates a missing or ambiguous
// converter.
func IsConversion(err error) bool { return IsKind(err, KindConversion) }

// IsDefinition reports whether an error indicates a format definition
// mistake.
func IsDefinition(err error) bool { return IsKind(err, KindDefinition) }

// IsNotFound reports whether an error indicates missing file-system paths.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }
