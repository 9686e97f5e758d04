package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/nerrad567/emerald-hwsd/internal/protocol"
)

// Errors reported to callers in place of a daemon response.
var (
	ErrDaemonExited = errors.New("daemon exited")
	ErrNotRunning   = errors.New("daemon not running")
)

// Child accepts request lines. process.Manager implements it.
type Child interface {
	WriteLine(line []byte) error
}

// LineReader yields raw request lines. protocol.Reader implements it.
type LineReader interface {
	ReadLine() ([]byte, error)
}

// ResponseWriter emits lines on the supervisor's stdout. protocol.Writer
// implements it.
type ResponseWriter interface {
	WriteLine(line []byte) error
	WriteResponse(r protocol.Response) error
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Stats counts proxied traffic.
type Stats struct {
	Forwarded int `json:"forwarded"`
	Answered  int `json:"answered"`
	Exited    int `json:"exited"`
	Rejected  int `json:"rejected"`
}

type pending struct {
	seq uint64
	id  json.RawMessage
}

// Supervisor tracks in-flight requests between a client and a child daemon.
type Supervisor struct {
	out    ResponseWriter
	logger Logger

	mu      sync.Mutex
	child   Child
	pending []pending
	seq     uint64
	stats   Stats
}

// New creates a Supervisor writing to out. Attach a child before forwarding.
func New(out ResponseWriter) *Supervisor {
	return &Supervisor{
		out:    out,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Attach sets the child that receives forwarded lines.
func (s *Supervisor) Attach(child Child) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.child = child
}

// Run forwards lines from r until EOF or ctx is cancelled. It returns nil
// at EOF and an error if reading or writing to out fails.
func (s *Supervisor) Run(ctx context.Context, r LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := s.Forward(line); err != nil {
			return err
		}
	}
}

// Forward sends one request line to the child and records its id. When the
// child cannot take it the caller is answered with ErrNotRunning. The
// returned error is an output write failure.
func (s *Supervisor) Forward(line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		// The daemon ignores blank lines, so no answer is owed.
		return nil
	}
	id := protocol.ParseLine(line).ID

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.pending = append(s.pending, pending{seq: seq, id: id})
	child := s.child
	s.mu.Unlock()

	err := ErrNotRunning
	if child != nil {
		err = child.WriteLine(line)
	}
	if err == nil {
		s.mu.Lock()
		s.stats.Forwarded++
		s.mu.Unlock()
		return nil
	}

	// An exit between the append and here may already have answered it.
	if !s.remove(seq) {
		return nil
	}

	s.logger.Debug("request rejected", "id", string(id), "error", err)

	s.mu.Lock()
	s.stats.Rejected++
	s.mu.Unlock()

	return s.out.WriteResponse(protocol.Failure(id, ErrNotRunning))
}

// HandleResponse passes one child stdout line through and retires the
// oldest pending request.
func (s *Supervisor) HandleResponse(line []byte) {
	s.mu.Lock()
	if len(s.pending) > 0 {
		s.pending = s.pending[1:]
	} else {
		s.logger.Warn("response with no pending request")
	}
	s.stats.Answered++
	s.mu.Unlock()

	if err := s.out.WriteLine(line); err != nil {
		s.logger.Error("writing response", "error", err)
	}
}

// HandleExit answers every pending request with ErrDaemonExited.
func (s *Supervisor) HandleExit(err error) {
	s.mu.Lock()
	orphaned := s.pending
	s.pending = nil
	s.stats.Exited += len(orphaned)
	s.mu.Unlock()

	if len(orphaned) > 0 {
		s.logger.Warn("daemon exited with requests in flight",
			"pending", len(orphaned),
			"error", err,
		)
	}

	for _, p := range orphaned {
		if werr := s.out.WriteResponse(protocol.Failure(p.id, ErrDaemonExited)); werr != nil {
			s.logger.Error("writing response", "error", werr)
		}
	}
}

// Pending returns the number of requests awaiting a response.
func (s *Supervisor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stats returns traffic counters.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Supervisor) remove(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p.seq == seq {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}
