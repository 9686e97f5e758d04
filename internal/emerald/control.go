package emerald

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/emerald-hwsd/internal/hws"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/mqtt"
)

// Values of the mode control field.
const (
	modeBoost  = 0
	modeNormal = 1
	modeQuiet  = 2
)

// controlHeader is the first element of every control message.
type controlHeader struct {
	DeviceID   string `json:"device_id"`
	Namespace  string `json:"namespace"`
	Command    string `json:"command"`
	Direction  string `json:"direction"`
	PropertyID string `json:"property_id"`
	HWID       string `json:"hw_id"`
	MsgID      string `json:"msg_id"`
}

// SetBoostMode implements hws.Client.
func (c *Client) SetBoostMode(ctx context.Context, id string) error {
	return c.control(ctx, id, hws.StateKeyMode, modeBoost)
}

// SetNormalMode implements hws.Client.
func (c *Client) SetNormalMode(ctx context.Context, id string) error {
	return c.control(ctx, id, hws.StateKeyMode, modeNormal)
}

// SetQuietMode implements hws.Client.
func (c *Client) SetQuietMode(ctx context.Context, id string) error {
	return c.control(ctx, id, hws.StateKeyMode, modeQuiet)
}

// TurnOn implements hws.Client.
func (c *Client) TurnOn(ctx context.Context, id string) error {
	return c.control(ctx, id, hws.StateKeySwitch, 1)
}

// TurnOff implements hws.Client.
func (c *Client) TurnOff(ctx context.Context, id string) error {
	return c.control(ctx, id, hws.StateKeySwitch, 0)
}

// control publishes one field change and records it in the cached state.
func (c *Client) control(ctx context.Context, id, key string, value int) error {
	if c.pub == nil {
		return ErrControlUnavailable
	}

	st, err := c.cached(ctx, id)
	if err != nil {
		return err
	}

	header := controlHeader{
		DeviceID:   id,
		Namespace:  "business",
		Command:    "control",
		Direction:  "app2gw",
		PropertyID: stringField(st, "property_id"),
		HWID:       st.SerialNumber(),
		MsgID:      uuid.NewString(),
	}
	payload := []any{header, map[string]int{key: value}}

	if err := c.pub.PublishJSON(mqtt.Topics{}.HeatPumpControl(id), payload); err != nil {
		return fmt.Errorf("%s=%d on %s: %w", key, value, id, err)
	}

	c.mergeState(id, map[string]any{key: value})
	return nil
}

// watch subscribes to gateway reports for newly seen heat pumps.
func (c *Client) watch(ids []string) {
	if c.pub == nil {
		return
	}
	for _, id := range ids {
		topic := mqtt.Topics{}.HeatPumpUpdates(id)
		err := c.pub.Subscribe(topic, c.pub.QoS(), func(_ string, payload []byte) error {
			return c.handleReport(id, payload)
		})
		if err != nil {
			c.logger.Warn("subscribing to heat pump reports", "hws_id", id, "error", err)
			continue
		}
		c.mu.Lock()
		c.subscribed[id] = true
		c.mu.Unlock()
	}
}

// handleReport merges a gateway report. Reports mirror control messages: a
// header followed by one or more objects of last_state fields.
func (c *Client) handleReport(id string, payload []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(payload, &parts); err != nil {
		return fmt.Errorf("decoding report for %s: %w", id, err)
	}
	if len(parts) < 2 {
		return nil
	}

	for _, raw := range parts[1:] {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil || len(fields) == 0 {
			continue
		}
		c.mergeState(id, fields)
	}
	return nil
}

func stringField(st hws.Status, key string) string {
	switch v := st[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
