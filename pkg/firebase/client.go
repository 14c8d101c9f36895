// Package firebase is the remote config provider capability: apply fetch
// settings, fetch-and-activate, read the active key/value set.
//
// RESTClient talks to the Firebase Remote Config client REST endpoint.
// MemoryClient serves a fixed value set and is used for offline runs and
// tests. Failures are *Error values carrying a provider Code.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ConfigSettings are the provider-side fetch settings.
type ConfigSettings struct {
	// FetchTimeout bounds one fetch. Zero means the client default.
	FetchTimeout time.Duration
	// MinimumFetchInterval is how long fetched values are reused before the
	// next fetch goes over the network. Zero always refetches.
	MinimumFetchInterval time.Duration
}

// DefaultMinimumFetchInterval matches the provider's production default.
const DefaultMinimumFetchInterval = 12 * time.Hour

// Client is the remote config provider.
type Client interface {
	// SetConfigSettings applies fetch settings for subsequent fetches.
	SetConfigSettings(ctx context.Context, s ConfigSettings) error
	// FetchAndActivate fetches values and makes them active. It reports
	// whether the active set changed.
	FetchAndActivate(ctx context.Context) (bool, error)
	// AllValues returns a copy of the active key/value set.
	AllValues() map[string]string
}

// Code is a provider failure code.
type Code int

const (
	CodeUnknown Code = iota
	CodeNetwork
	CodeTimeout
	CodeThrottled
	CodeUnauthorized
	CodeInvalidResponse
	CodeNotConfigured
)

func (c Code) String() string {
	switch c {
	case CodeNetwork:
		return "network"
	case CodeTimeout:
		return "timeout"
	case CodeThrottled:
		return "throttled"
	case CodeUnauthorized:
		return "unauthorized"
	case CodeInvalidResponse:
		return "invalid_response"
	case CodeNotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// Error is a provider failure.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := "firebase remote config: " + e.Code.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code Code, cause error, format string, a ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, a...), Cause: cause}
}

// CodeOf extracts the provider code from err. Context deadlines and
// net.Error timeouts map to CodeTimeout, other net.Errors to CodeNetwork.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return CodeTimeout
		}
		return CodeNetwork
	}
	return CodeUnknown
}
