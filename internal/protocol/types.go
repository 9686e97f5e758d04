package protocol

import (
	"encoding/json"
	"errors"
)

// ErrParse is wrapped by the error attached to requests whose line could not
// be decoded as a JSON object.
var ErrParse = errors.New("parse error")

// Request is one decoded input line. It is not modified after ReadRequest returns.
type Request struct {
	// ID is the caller's correlation token, echoed verbatim. Nil when the
	// line had no id or could not be parsed.
	ID json.RawMessage

	// Cmd is the command name. Empty when absent.
	Cmd string

	// DeviceID is the hws_id parameter.
	DeviceID string

	// Mode is the raw mode parameter; the dispatcher validates it.
	Mode json.RawMessage

	// Err is set when the line was not a usable request. It wraps ErrParse
	// for undecodable lines.
	Err error
}

// Response is one output line.
type Response struct {
	ID     json.RawMessage `json:"id"`
	OK     bool            `json:"ok"`
	Result any             `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// unknownError is reported when a failure carries no message.
const unknownError = "unknown error"

// Success builds an ok response. A nil result is reported as JSON null.
func Success(id json.RawMessage, result any) Response {
	if result == nil {
		result = json.RawMessage("null")
	}
	return Response{ID: id, OK: true, Result: result}
}

// Failure builds an error response.
func Failure(id json.RawMessage, err error) Response {
	msg := unknownError
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Response{ID: id, OK: false, Error: msg}
}

// MarshalJSON keeps the id key present (as null) even when no id was supplied.
func (r Response) MarshalJSON() ([]byte, error) {
	type wire Response
	w := wire(r)
	if len(w.ID) == 0 {
		w.ID = json.RawMessage("null")
	}
	return json.Marshal(w)
}
