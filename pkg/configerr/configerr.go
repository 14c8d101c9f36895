// Package configerr defines the closed set of failures a config load can end
// in. Every error a loader hands back to its caller is an *Error carrying
// exactly one Kind; callers branch on the Kind, never on message text.
package configerr

import (
	"errors"
	"fmt"
)

// Kind classifies a config loading failure.
type Kind int

const (
	// Unknown covers provider failures with no better mapping.
	Unknown Kind = iota
	// FirebaseRemoteConfigUnavailable means no remote config client is wired in.
	FirebaseRemoteConfigUnavailable
	// NetworkError means the remote fetch failed in transit or timed out.
	NetworkError
	// FieldNotFound means the configured remote parameter does not exist.
	FieldNotFound
	// ResourceNotFound means a bundled resource or cache file is missing.
	ResourceNotFound
	// ParsingError means content was found but could not be decoded.
	ParsingError
)

var kindNames = map[Kind]string{
	Unknown:                         "Unknown",
	FirebaseRemoteConfigUnavailable: "FirebaseRemoteConfigUnavailable",
	NetworkError:                    "NetworkError",
	FieldNotFound:                   "FieldNotFound",
	ResourceNotFound:                "ResourceNotFound",
	ParsingError:                    "ParsingError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error pairs a Kind with diagnostic detail and an optional cause.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

// New returns an *Error without a cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf is New with a formatted detail.
func Newf(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, a...)}
}

// Wrap returns an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += " [" + e.Detail + "]"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error of the same kind, so
// errors.Is(err, configerr.New(configerr.NetworkError, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err carries one of kinds.
func IsKind(err error, kinds ...Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, k := range kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// From converts any error into an *Error. Errors that already are (or wrap)
// an *Error are returned as that *Error; everything else becomes Unknown.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(Unknown, err, "")
}
