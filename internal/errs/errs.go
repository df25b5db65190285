// Package errs defines the closed set of failure kinds surfaced by nwbuild.
//
// Every stage returns an *Error tagged with one Kind and the context needed to act
// on it (URL, version tuple, offending field). Callers classify with Is or KindOf
// instead of matching message text.
package errs

import (
	"errors"
	"strings"
)

// Kind classifies a failure.
type Kind int

// Kinds, in the order a request flows through the pipeline.
const (
	Other Kind = iota
	Config
	Resolution
	Network
	IO
	Dispatch
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Resolution:
		return "resolution"
	case Network:
		return "network"
	case IO:
		return "io"
	case Dispatch:
		return "dispatch"
	default:
		return "other"
	}
}

// Error is a classified failure with structured context.
type Error struct {
	Kind Kind
	// Op names the step that failed, e.g. "fetch manifest".
	Op string

	Field    string
	URL      string
	Path     string
	Version  string
	Flavor   string
	Platform string
	Arch     string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return e.Kind.String() + " error"
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed.
// Only network failures qualify; a missing version or corrupt archive will not fix itself.
func (e *Error) Retryable() bool {
	return e.Kind == Network
}

// KindOf returns the kind of the outermost *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
