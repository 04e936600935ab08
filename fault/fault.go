// Package fault classifies errors raised by storage components.
//
// Every error surfaced by the library carries exactly one Kind. The retry
// pipeline uses the kind to decide whether an operation may be attempted
// again: Connection faults are retryable, and unclassified errors from
// native drivers are treated the same way. All remaining kinds describe
// conditions that repeating the call cannot fix.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of an error.
type Kind int

const (
	// Unknown marks errors produced outside this library.
	Unknown Kind = iota

	// Connection is a transient network or driver failure. Retryable.
	Connection

	// Data is a schema or result-shape validation failure. Never retried.
	Data

	// Type is a value-representation failure detected at bind time.
	Type

	// Config is an unsupported flag or option passed to an operation.
	Config

	// Lifecycle is an operation invoked after close or disposal.
	Lifecycle
)

// String returns a short lower-case label for logging.
func (k Kind) String() string {
	switch k {
	case Connection:
		return "connection"
	case Data:
		return "data"
	case Type:
		return "type"
	case Config:
		return "config"
	case Lifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// Error is a classified failure with optional database/table context.
type Error struct {
	Kind     Kind
	Op       string
	Database string
	Table    string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Database != "" {
		msg += " database=" + e.Database
	}
	if e.Table != "" {
		msg += " table=" + e.Table
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error from a formatted message.
func New(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithContext attaches database and table context to err, preserving the
// innermost classification if err is already a fault.
func WithContext(kind Kind, op, database, table string, err error) error {
	if err == nil {
		return nil
	}
	if k := KindOf(err); k != Unknown {
		kind = k
	}
	return &Error{Kind: kind, Op: op, Database: database, Table: table, Err: err}
}

// KindOf reports the kind of err, or Unknown for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// Retryable reports whether err is a classified Connection fault. Callers
// deciding retry eligibility may additionally treat unclassified native
// driver errors as transient.
func Retryable(err error) bool { return KindOf(err) == Connection }
