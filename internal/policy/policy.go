package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/emerald-hwsd/internal/dispatch"
	"github.com/nerrad567/emerald-hwsd/internal/protocol"
)

// OnCommandError selects what happens after a command fails.
type OnCommandError string

const (
	// Continue answers the error and keeps serving.
	Continue OnCommandError = "continue"

	// Exit answers the error and stops the daemon on device or session failures.
	Exit OnCommandError = "exit"
)

// ParseOnCommandError converts a configuration value into a policy.
func ParseOnCommandError(s string) (OnCommandError, error) {
	switch p := OnCommandError(strings.ToLower(strings.TrimSpace(s))); p {
	case Continue, Exit:
		return p, nil
	case "":
		return Continue, nil
	default:
		return "", fmt.Errorf("unknown on_command_error policy %q (want %q or %q)", s, Continue, Exit)
	}
}

// Dispatcher executes a single attempt of a request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req protocol.Request, force bool) (any, error)
}

// Logger defines the logging interface for the policy.
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

// Outcome is the final result of executing one request.
type Outcome struct {
	Result   any
	Err      error
	Kind     dispatch.Kind
	Attempts int

	// Renewed is set when a forced session renewal was requested.
	Renewed bool

	// Fatal is set when the failure policy requires the daemon to stop.
	Fatal bool

	Duration time.Duration
}

// Response converts the outcome into the protocol response for id.
func (o Outcome) Response(id json.RawMessage) protocol.Response {
	if o.Err != nil {
		return protocol.Failure(id, o.Err)
	}
	return protocol.Success(id, o.Result)
}

// Policy applies the retry rule and failure policy around a Dispatcher.
type Policy struct {
	dispatcher Dispatcher
	onError    OnCommandError
	logger     Logger
}

// New creates a Policy.
func New(d Dispatcher, onError OnCommandError) *Policy {
	if onError == "" {
		onError = Continue
	}
	return &Policy{
		dispatcher: d,
		onError:    onError,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the policy.
func (p *Policy) SetLogger(logger Logger) {
	p.logger = logger
}

// OnError returns the configured failure policy.
func (p *Policy) OnError() OnCommandError {
	return p.onError
}

// Execute runs req to completion, including at most one retry.
func (p *Policy) Execute(ctx context.Context, req protocol.Request) Outcome {
	start := time.Now()

	result, err := p.dispatcher.Dispatch(ctx, req, false)
	out := Outcome{Attempts: 1}

	if err != nil && retryable(req, err) {
		p.logger.Warn("status failed, retrying with a fresh session",
			"hws_id", req.DeviceID,
			"error", err,
		)
		out.Attempts++
		out.Renewed = true
		result, err = p.dispatcher.Dispatch(ctx, req, true)
	}

	out.Duration = time.Since(start)
	if err != nil {
		out.Err = err
		out.Kind = dispatch.KindOf(err)
		out.Fatal = p.fatal(out.Kind)
		return out
	}

	out.Result = result
	return out
}

func retryable(req protocol.Request, err error) bool {
	return req.Err == nil &&
		req.Cmd == dispatch.CmdStatus &&
		dispatch.KindOf(err) == dispatch.KindDeviceAPI
}

func (p *Policy) fatal(kind dispatch.Kind) bool {
	if p.onError != Exit {
		return false
	}
	return kind == dispatch.KindDeviceAPI || kind == dispatch.KindReauthFailure
}
