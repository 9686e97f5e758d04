package dispatch

import (
	"context"
	"errors"

	"github.com/nerrad567/emerald-hwsd/internal/hws"
	"github.com/nerrad567/emerald-hwsd/internal/protocol"
)

// Command names accepted by the dispatcher.
const (
	CmdDiscover = "discover"
	CmdStatus   = "status"
	CmdSetMode  = "set_mode"
	CmdTurnOn   = "turn_on"
	CmdTurnOff  = "turn_off"
)

// Acquirer hands out the current Device Client handle. session.Manager
// implements it.
type Acquirer interface {
	Acquire(ctx context.Context, force bool) (hws.Client, error)
}

// Device is one entry of the discover result.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ModeResult is the set_mode result.
type ModeResult struct {
	OK   bool `json:"ok"`
	Mode Mode `json:"mode"`
}

// AckResult is the turn_on and turn_off result.
type AckResult struct {
	OK bool `json:"ok"`
}

// Dispatcher executes one request against the Device Client.
type Dispatcher struct {
	sessions Acquirer
}

// New creates a Dispatcher that obtains handles from sessions.
func New(sessions Acquirer) *Dispatcher {
	return &Dispatcher{sessions: sessions}
}

// Dispatch executes req. force is passed to session acquisition.
//
// Returns the command result, or an *Error. Parameter validation happens
// before a session is acquired, so bad requests never touch the device.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request, force bool) (any, error) {
	if req.Err != nil {
		if errors.Is(req.Err, protocol.ErrParse) {
			return nil, ParseError(req.Err)
		}
		return nil, InvalidArgument(req.Err.Error())
	}

	switch req.Cmd {
	case CmdDiscover:
		client, err := d.acquire(ctx, force)
		if err != nil {
			return nil, err
		}
		return discover(ctx, client)

	case CmdStatus:
		if err := requireDevice(req); err != nil {
			return nil, err
		}
		client, err := d.acquire(ctx, force)
		if err != nil {
			return nil, err
		}
		st, err := client.FullStatus(ctx, req.DeviceID)
		if err != nil {
			return nil, DeviceAPIError(err)
		}
		if st == nil {
			return nil, &Error{Kind: KindDeviceAPI, Msg: "status returned no data"}
		}
		return st, nil

	case CmdSetMode:
		if err := requireDevice(req); err != nil {
			return nil, err
		}
		mode, err := ParseMode(req.Mode)
		if err != nil {
			return nil, err
		}
		client, err := d.acquire(ctx, force)
		if err != nil {
			return nil, err
		}
		if err := SetMode(ctx, client, req.DeviceID, mode); err != nil {
			return nil, DeviceAPIError(err)
		}
		return ModeResult{OK: true, Mode: mode}, nil

	case CmdTurnOn, CmdTurnOff:
		if err := requireDevice(req); err != nil {
			return nil, err
		}
		client, err := d.acquire(ctx, force)
		if err != nil {
			return nil, err
		}
		op := client.TurnOn
		if req.Cmd == CmdTurnOff {
			op = client.TurnOff
		}
		if err := op(ctx, req.DeviceID); err != nil {
			return nil, DeviceAPIError(err)
		}
		return AckResult{OK: true}, nil

	default:
		return nil, UnknownCommand(req.Cmd)
	}
}

func (d *Dispatcher) acquire(ctx context.Context, force bool) (hws.Client, error) {
	client, err := d.sessions.Acquire(ctx, force)
	if err != nil {
		return nil, ReauthFailure(err)
	}
	return client, nil
}

func requireDevice(req protocol.Request) error {
	if req.DeviceID == "" {
		return InvalidArgument("missing hws_id")
	}
	return nil
}

// discover lists devices with a display name: serial number, else brand,
// else the id itself.
func discover(ctx context.Context, client hws.Client) ([]Device, error) {
	ids, err := client.ListDevices(ctx)
	if err != nil {
		return nil, DeviceAPIError(err)
	}

	devices := make([]Device, 0, len(ids))
	for _, id := range ids {
		info, err := client.Info(ctx, id)
		if err != nil {
			return nil, DeviceAPIError(err)
		}
		devices = append(devices, Device{ID: id, Name: DisplayName(id, info)})
	}
	return devices, nil
}

// DisplayName picks the discover name for a device.
func DisplayName(id string, info hws.Info) string {
	switch {
	case info.SerialNumber != "":
		return info.SerialNumber
	case info.Brand != "":
		return info.Brand
	default:
		return id
	}
}

// SetMode applies mode to a device through client.
func SetMode(ctx context.Context, client hws.Client, id string, mode Mode) error {
	switch mode {
	case ModeBoost:
		return client.SetBoostMode(ctx, id)
	case ModeNormal:
		return client.SetNormalMode(ctx, id)
	case ModeQuiet:
		return client.SetQuietMode(ctx, id)
	default:
		return InvalidArgument(errInvalidMode)
	}
}
