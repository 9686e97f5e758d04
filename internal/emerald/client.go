package emerald

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/emerald-hwsd/internal/hws"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/mqtt"
)

// Publisher is the MQTT side of a session. *mqtt.Client implements it.
type Publisher interface {
	PublishJSON(topic string, v any) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	QoS() byte
	Close() error
}

// Client is one authenticated Emerald session.
//
// Thread Safety:
//   - All methods are safe for concurrent use. MQTT reports arrive on paho
//     goroutines and are merged under the same lock reads use.
type Client struct {
	api    *api
	pub    Publisher
	logger Logger

	mu         sync.RWMutex
	pumps      map[string]hws.Status
	order      []string
	subscribed map[string]bool
	closed     bool
}

var _ hws.Client = (*Client)(nil)

func newClient(a *api, pub Publisher, logger Logger) *Client {
	return &Client{
		api:        a,
		pub:        pub,
		logger:     logger,
		pumps:      make(map[string]hws.Status),
		subscribed: make(map[string]bool),
	}
}

// ListDevices refreshes the property list and returns every heat pump id.
func (c *Client) ListDevices(ctx context.Context) ([]string, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...), nil
}

// Info returns serial number and brand, refreshing only on a cache miss.
func (c *Client) Info(ctx context.Context, id string) (hws.Info, error) {
	st, err := c.cached(ctx, id)
	if err != nil {
		return hws.Info{}, err
	}
	return hws.Info{ID: id, SerialNumber: st.SerialNumber(), Brand: st.Brand()}, nil
}

// FullStatus refreshes the property list and returns a copy of the heat pump object.
func (c *Client) FullStatus(ctx context.Context, id string) (hws.Status, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.pumps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return copyStatus(st), nil
}

// Close disconnects the control channel. Further calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.pub != nil {
		return c.pub.Close()
	}
	return nil
}

// refresh reloads every heat pump from the REST API.
func (c *Client) refresh(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	pumps, err := c.api.heatPumps(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.pumps = make(map[string]hws.Status, len(pumps))
	c.order = c.order[:0]
	var fresh []string
	for _, hp := range pumps {
		id, _ := hp["id"].(string)
		if id == "" {
			continue
		}
		if _, dup := c.pumps[id]; !dup {
			c.order = append(c.order, id)
		}
		c.pumps[id] = hp
		if !c.subscribed[id] {
			fresh = append(fresh, id)
		}
	}
	c.mu.Unlock()

	c.watch(fresh)
	return nil
}

// cached returns the heat pump object, refreshing once on a miss.
func (c *Client) cached(ctx context.Context, id string) (hws.Status, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	c.mu.RLock()
	st, ok := c.pumps[id]
	c.mu.RUnlock()
	if ok {
		return st, nil
	}

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok = c.pumps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return st, nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// mergeState applies reported last_state values to the cached heat pump.
func (c *Client) mergeState(id string, state map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.pumps[id]
	if !ok {
		return
	}
	last := copyState(st.LastState())
	for k, v := range state {
		last[k] = v
	}
	updated := copyStatus(st)
	updated["last_state"] = last
	c.pumps[id] = updated
}

func copyStatus(st hws.Status) hws.Status {
	out := make(hws.Status, len(st))
	for k, v := range st {
		out[k] = v
	}
	if ls := st.LastState(); ls != nil {
		out["last_state"] = copyState(ls)
	}
	return out
}

func copyState(state map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}
