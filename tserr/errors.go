// Package tserr defines the classified error type used across timeship.
//
// The design is grounded on upspin.io/errors: a small Kind enum that lets a
// transport layer (here, the HTTP surface) map any error returned by the
// storage stack onto a wire status without string-sniffing messages.
package tserr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of HTTP status mapping. It says
// nothing about the underlying cause, only how a caller ought to react.
type Kind int

// Kinds of errors, matching the taxonomy in the error handling design.
const (
	Other Kind = iota
	InvalidPath
	InvalidSnapshot
	InvalidParameter
	StorageNotFound
	NotFound
	NotSupported
	Internal
)

// String returns a short, user-facing title for the error kind. It is used
// as the "<title>" half of the envelope message.
func (k Kind) String() string {
	switch k {
	case InvalidPath:
		return "Invalid path"
	case InvalidSnapshot:
		return "Invalid snapshot"
	case InvalidParameter:
		return "Invalid parameter"
	case StorageNotFound:
		return "Storage not found"
	case NotFound:
		return "Not found"
	case NotSupported:
		return "Not implemented"
	case Internal:
		return "Internal error"
	default:
		return "Error"
	}
}

// Error is the error type returned by every package in the storage stack.
// Path is always a relative locator, never an absolute on-disk path — the
// HTTP surface is free to put it straight into a client-visible message.
type Error struct {
	Op   string // operation being performed, e.g. "list", "open", "enumerate"
	Kind Kind
	Path string
	Err  error
}

// New builds an Error. err may be nil for errors with no underlying cause.
func New(op string, kind Kind, path string, err error) *Error {
	return &Error{Op: op, Kind: kind, Path: path, Err: err}
}

func (e *Error) Error() string {
	s := e.Op
	if e.Path != "" {
		if s != "" {
			s += ": "
		}
		s += e.Path
	}
	if s != "" {
		s += ": "
	}
	s += e.Kind.String()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Detail renders the part of the error after its Kind title: the relative
// path, if any, and the wrapped cause, if any. This is the "<detail>" half
// of the HTTP envelope message; it never includes Op, since that's an
// internal operation name, not something a client needs.
func (e *Error) Detail() string {
	s := e.Path
	if e.Err != nil {
		if s != "" {
			s += ": "
		}
		s += e.Err.Error()
	}
	return s
}

// KindOf walks err's chain and returns the Kind of the first *Error found,
// or Internal if err does not wrap one (an unclassified error is always
// treated as an internal failure, never exposed to the client as 400/404).
func KindOf(err error) Kind {
	if err == nil {
		return Other
	}
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return Internal
}

// Is reports whether err's chain contains an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var terr *Error
	return errors.As(err, &terr) && terr.Kind == kind
}

var _ error = (*Error)(nil)
var _ fmt.Stringer = Kind(0)
