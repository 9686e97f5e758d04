package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// maxLineSize bounds a single request line (1MB), matching the MQTT payload cap.
const maxLineSize = 1 << 20

// Reader decodes requests from a newline-delimited stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for request decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadRequest blocks until the next non-blank line is available and decodes it.
//
// Returns io.EOF once the stream ends. A final line without a trailing
// newline is still decoded. Other read errors are returned wrapped.
func (r *Reader) ReadRequest() (Request, error) {
	line, err := r.ReadLine()
	if err != nil {
		return Request{}, err
	}
	return ParseLine(line), nil
}

// ReadLine returns the next non-blank line without decoding it, for callers
// that forward requests verbatim.
func (r *Reader) ReadLine() ([]byte, error) {
	for {
		line, err := r.readLine()
		if len(bytes.TrimSpace(line)) > 0 {
			return line, nil
		}
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read request: %w", err)
		}
	}
}

// readLine returns one line without its terminator. Lines longer than
// maxLineSize are returned truncated; the remainder is discarded.
func (r *Reader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.r.ReadLine()
		if len(line)+len(chunk) <= maxLineSize {
			line = append(line, chunk...)
		}
		if err != nil {
			return line, err
		}
		if !isPrefix {
			return line, nil
		}
	}
}

// ParseLine decodes one request line. It never fails: problems are reported
// through Request.Err so the caller can still answer.
func ParseLine(line []byte) Request {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(line), &fields); err != nil || fields == nil {
		if err == nil {
			err = fmt.Errorf("request must be a JSON object")
		}
		return Request{Err: fmt.Errorf("%w: %w", ErrParse, err)}
	}

	req := Request{Mode: fields["mode"]}

	if id, ok := fields["id"]; ok {
		req.ID = id
	}

	if raw, ok := fields["cmd"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &req.Cmd); err != nil {
			req.Err = fmt.Errorf("cmd must be a string")
			return req
		}
	}

	if raw, ok := fields["hws_id"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &req.DeviceID); err != nil {
			req.Err = fmt.Errorf("hws_id must be a string")
			return req
		}
	}

	return req
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Writer encodes responses, one per line.
//
// Thread Safety:
//   - WriteResponse is safe for concurrent use; each response is written and
//     flushed as a single unit.
type Writer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewWriter wraps w for response encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteResponse writes r as one line and flushes it before returning.
func (w *Writer) WriteResponse(r Response) error {
	data, err := json.Marshal(r)
	if err != nil {
		// Result was not encodable; report that instead of dropping the reply
		data, err = json.Marshal(Failure(r.ID, fmt.Errorf("encode result: %w", err)))
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
	}

	return w.WriteLine(data)
}

// WriteLine writes an already-encoded line. A trailing newline is added.
func (w *Writer) WriteLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	line = bytes.TrimRight(line, "\r\n")
	if _, err := w.w.Write(line); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}
