package dispatch

import (
	"errors"
	"fmt"
)

// Kind classifies a command failure.
type Kind string

const (
	// KindParseError means the input line was not a JSON object.
	KindParseError Kind = "parse_error"

	// KindUnknownCommand means cmd is not in the command table.
	KindUnknownCommand Kind = "unknown_command"

	// KindInvalidArgument means a parameter was missing or out of range.
	KindInvalidArgument Kind = "invalid_argument"

	// KindDeviceAPI means the Device Client reported a failure.
	KindDeviceAPI Kind = "device_api_error"

	// KindReauthFailure means no usable session could be obtained.
	KindReauthFailure Kind = "reauth_failure"

	// KindUnknown is reported by KindOf for errors outside the taxonomy.
	KindUnknown Kind = ""
)

// CallerError reports whether the kind describes a bad request rather than
// a device or session fault. Restarting the process cannot fix these.
func (k Kind) CallerError() bool {
	switch k {
	case KindParseError, KindUnknownCommand, KindInvalidArgument:
		return true
	default:
		return false
	}
}

// Error is a classified command failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error returns the message sent back to the caller.
func (e *Error) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// ParseError wraps a decode failure.
func ParseError(err error) *Error {
	return &Error{Kind: KindParseError, Err: err}
}

// UnknownCommand reports a command that is not in the table.
func UnknownCommand(cmd string) *Error {
	return &Error{Kind: KindUnknownCommand, Msg: fmt.Sprintf("Unknown cmd: %s", cmd)}
}

// InvalidArgument reports a bad or missing parameter.
func InvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Msg: msg}
}

// DeviceAPIError wraps a Device Client failure, keeping its message.
func DeviceAPIError(err error) *Error {
	return &Error{Kind: KindDeviceAPI, Err: err}
}

// ReauthFailure wraps a session acquisition failure.
func ReauthFailure(err error) *Error {
	return &Error{Kind: KindReauthFailure, Err: err}
}
