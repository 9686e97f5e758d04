// Package hwstest provides in-memory hws.Client and hws.Connector fakes for tests.
package hwstest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/emerald-hwsd/internal/hws"
)

// ErrClosed is returned by every method of a Client after Close.
var ErrClosed = errors.New("client closed")

// Call records one method invocation on a Client.
type Call struct {
	Method   string
	DeviceID string
}

// Client is a scriptable hws.Client.
//
// Leave a field nil for a successful default. Errs overrides by method name
// ("FullStatus", "TurnOn", ...) and applies to every call of that method.
type Client struct {
	Name    string
	Devices []string
	Infos   map[string]hws.Info
	Status  map[string]hws.Status
	Errs    map[string]error

	mu     sync.Mutex
	calls  []Call
	closed bool
}

var _ hws.Client = (*Client)(nil)

// Calls returns a copy of the recorded calls.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) record(method, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Method: method, DeviceID: id})
	if c.closed {
		return ErrClosed
	}
	if err := c.Errs[method]; err != nil {
		return err
	}
	return nil
}

// ListDevices implements hws.Client.
func (c *Client) ListDevices(_ context.Context) ([]string, error) {
	if err := c.record("ListDevices", ""); err != nil {
		return nil, err
	}
	return append([]string(nil), c.Devices...), nil
}

// Info implements hws.Client.
func (c *Client) Info(_ context.Context, id string) (hws.Info, error) {
	if err := c.record("Info", id); err != nil {
		return hws.Info{}, err
	}
	info, ok := c.Infos[id]
	if !ok {
		return hws.Info{ID: id}, nil
	}
	return info, nil
}

// FullStatus implements hws.Client.
func (c *Client) FullStatus(_ context.Context, id string) (hws.Status, error) {
	if err := c.record("FullStatus", id); err != nil {
		return nil, err
	}
	return c.Status[id], nil
}

// SetBoostMode implements hws.Client.
func (c *Client) SetBoostMode(_ context.Context, id string) error {
	return c.record("SetBoostMode", id)
}

// SetNormalMode implements hws.Client.
func (c *Client) SetNormalMode(_ context.Context, id string) error {
	return c.record("SetNormalMode", id)
}

// SetQuietMode implements hws.Client.
func (c *Client) SetQuietMode(_ context.Context, id string) error {
	return c.record("SetQuietMode", id)
}

// TurnOn implements hws.Client.
func (c *Client) TurnOn(_ context.Context, id string) error {
	return c.record("TurnOn", id)
}

// TurnOff implements hws.Client.
func (c *Client) TurnOff(_ context.Context, id string) error {
	return c.record("TurnOff", id)
}

// Close implements hws.Client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Connector hands out a scripted sequence of Connect results.
//
// Each Connect consumes the next entry of Results. Once Results is exhausted,
// Connect returns Fallback, or an error when Fallback is nil.
type Connector struct {
	Results  []Result
	Fallback *Client

	mu    sync.Mutex
	count int
}

// Result is one scripted Connect outcome.
type Result struct {
	Client *Client
	Err    error
}

var _ hws.Connector = (*Connector)(nil)

// Connect implements hws.Connector.
func (c *Connector) Connect(_ context.Context) (hws.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.count
	c.count++
	if n < len(c.Results) {
		r := c.Results[n]
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Client, nil
	}
	if c.Fallback != nil {
		return c.Fallback, nil
	}
	return nil, fmt.Errorf("connect attempt %d: no scripted result", n+1)
}

// Count returns how many times Connect was called.
func (c *Connector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
