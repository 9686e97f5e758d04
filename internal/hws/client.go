package hws

import "context"

// Info is the identifying metadata of one hot water system.
type Info struct {
	ID           string `json:"id"`
	SerialNumber string `json:"serial_number,omitempty"`
	Brand        string `json:"brand,omitempty"`
}

// Client is an authenticated Device Client handle.
//
// A Client is only valid while the session that created it is current; the
// session manager closes it when it is replaced. Any method may fail, and a
// failure after the cloud token expired looks like any other failure.
type Client interface {
	// ListDevices returns the references of every device visible to the account.
	ListDevices(ctx context.Context) ([]string, error)

	// Info returns identifying metadata for a device.
	Info(ctx context.Context, id string) (Info, error)

	// FullStatus returns the complete status snapshot for a device.
	// A nil Status with a nil error means the device reported nothing.
	FullStatus(ctx context.Context, id string) (Status, error)

	SetBoostMode(ctx context.Context, id string) error
	SetNormalMode(ctx context.Context, id string) error
	SetQuietMode(ctx context.Context, id string) error
	TurnOn(ctx context.Context, id string) error
	TurnOff(ctx context.Context, id string) error

	// Close releases the handle's connections.
	Close() error
}

// Connector authenticates with stored credentials and returns a fresh Client.
type Connector interface {
	Connect(ctx context.Context) (Client, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Client, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context) (Client, error) {
	return f(ctx)
}
