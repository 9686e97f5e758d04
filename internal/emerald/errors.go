package emerald

import "errors"

var (
	// ErrAuthFailed is returned when sign-in is rejected or yields no token.
	ErrAuthFailed = errors.New("emerald: authentication failed")

	// ErrAPI is returned when the REST API answers with a failure code.
	ErrAPI = errors.New("emerald: api request failed")

	// ErrUnknownDevice is returned for a heat pump id the account cannot see.
	ErrUnknownDevice = errors.New("emerald: unknown device")

	// ErrControlUnavailable is returned by control operations when the session
	// has no MQTT connection.
	ErrControlUnavailable = errors.New("emerald: control channel not configured")

	// ErrClosed is returned by every operation on a closed client.
	ErrClosed = errors.New("emerald: client closed")
)
