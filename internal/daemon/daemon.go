package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nerrad567/emerald-hwsd/internal/policy"
	"github.com/nerrad567/emerald-hwsd/internal/protocol"
)

// RequestReader yields decoded requests. protocol.Reader implements it.
type RequestReader interface {
	ReadRequest() (protocol.Request, error)
}

// ResponseWriter emits responses. protocol.Writer implements it.
type ResponseWriter interface {
	WriteResponse(protocol.Response) error
}

// Executor runs one request to completion. policy.Policy implements it.
type Executor interface {
	Execute(ctx context.Context, req protocol.Request) policy.Outcome
}

// Observation is what observers see after a request has been answered.
type Observation struct {
	Request protocol.Request
	Outcome policy.Outcome
	At      time.Time
}

// Observer is notified of every answered request. Observer errors are
// logged and never change the response or stop the loop.
type Observer interface {
	Observe(ctx context.Context, o Observation) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, o Observation) error

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, o Observation) error {
	return f(ctx, o)
}

// Logger defines the logging interface for the daemon.
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

// Config holds the loop settings.
type Config struct {
	// RestartAfter stops the loop, before reading the next request, once the
	// daemon has run this long. Zero disables it.
	RestartAfter time.Duration

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Stats counts handled requests.
type Stats struct {
	Requests int `json:"requests"`
	Failures int `json:"failures"`
	Retries  int `json:"retries"`
}

// Daemon is the request loop.
type Daemon struct {
	reader    RequestReader
	writer    ResponseWriter
	executor  Executor
	observers []Observer
	config    Config
	logger    Logger

	mu    sync.RWMutex
	state State
	stats Stats
}

// New creates a Daemon.
func New(r RequestReader, w ResponseWriter, e Executor, cfg Config) *Daemon {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Daemon{
		reader:   r,
		writer:   w,
		executor: e,
		config:   cfg,
		logger:   noopLogger{},
		state:    StateReading,
	}
}

// SetLogger sets the logger for the daemon.
func (d *Daemon) SetLogger(logger Logger) {
	d.logger = logger
}

// AddObserver registers an observer. Not safe to call while Run is active.
func (d *Daemon) AddObserver(o Observer) {
	d.observers = append(d.observers, o)
}

// State returns the current loop state.
func (d *Daemon) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Stats returns request counters.
func (d *Daemon) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

func (d *Daemon) setState(to State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := Transition(d.state, to); err != nil {
		// Programming error; keep going rather than wedge the loop
		d.logger.Error("daemon state", "error", err)
	}
	d.state = to
}

// Run serves requests until a stop condition is reached.
//
// The returned error is non-nil only for StopWriteFailed and StopReadFailed.
func (d *Daemon) Run(ctx context.Context) (StopReason, error) {
	started := d.config.Now()
	d.logger.Info("daemon started", "restart_after", d.config.RestartAfter)

	for {
		if ctx.Err() != nil {
			return d.stop(StopCancelled, nil)
		}

		if d.config.RestartAfter > 0 {
			if elapsed := d.config.Now().Sub(started); elapsed >= d.config.RestartAfter {
				d.logger.Info("scheduled restart", "uptime", elapsed)
				return d.stop(StopScheduledRestart, nil)
			}
		}

		req, err := d.reader.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return d.stop(StopEOF, nil)
			}
			if ctx.Err() != nil {
				// stdin was closed to unblock the read
				return d.stop(StopCancelled, nil)
			}
			return d.stop(StopReadFailed, err)
		}

		d.setState(StateDispatching)
		out := d.executor.Execute(ctx, req)

		d.setState(StateResponding)
		if err := d.writer.WriteResponse(out.Response(req.ID)); err != nil {
			return d.stop(StopWriteFailed, err)
		}

		d.record(req, out)
		d.notify(ctx, req, out)

		if out.Fatal {
			d.logger.Warn("command failed under exit policy, stopping",
				"cmd", req.Cmd,
				"kind", out.Kind,
				"error", out.Err,
			)
			return d.stop(StopFatal, nil)
		}

		d.setState(StateReading)
	}
}

func (d *Daemon) stop(reason StopReason, err error) (StopReason, error) {
	d.setState(StateStopped)

	if err != nil {
		d.logger.Error("daemon stopped", "reason", reason, "error", err)
		return reason, fmt.Errorf("daemon %s: %w", reason, err)
	}
	d.logger.Info("daemon stopped", "reason", reason)
	return reason, nil
}

func (d *Daemon) record(req protocol.Request, out policy.Outcome) {
	d.mu.Lock()
	d.stats.Requests++
	if out.Err != nil {
		d.stats.Failures++
	}
	if out.Attempts > 1 {
		d.stats.Retries++
	}
	d.mu.Unlock()

	if out.Err != nil {
		d.logger.Warn("command failed",
			"id", string(idOrNull(req.ID)),
			"cmd", req.Cmd,
			"kind", out.Kind,
			"attempts", out.Attempts,
			"error", out.Err,
		)
		return
	}
	d.logger.Debug("command ok",
		"id", string(idOrNull(req.ID)),
		"cmd", req.Cmd,
		"attempts", out.Attempts,
		"duration", out.Duration,
	)
}

func (d *Daemon) notify(ctx context.Context, req protocol.Request, out policy.Outcome) {
	if len(d.observers) == 0 {
		return
	}
	o := Observation{Request: req, Outcome: out, At: d.config.Now()}
	for _, obs := range d.observers {
		if err := obs.Observe(ctx, o); err != nil {
			d.logger.Warn("observer failed", "cmd", req.Cmd, "error", err)
		}
	}
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
