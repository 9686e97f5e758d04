package emerald

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/emerald-hwsd/internal/hws"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/config"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/mqtt"
)

// Device identification sent with sign-in, as the vendor app does.
const (
	deviceName      = "emeraldhwsd"
	deviceOSVersion = "linux"
)

// defaultTimeout applies when Config.Timeout is zero.
const defaultTimeout = 15 * time.Second

// Logger defines the logging interface for the Emerald client.
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

// Dialer opens the MQTT side of a session.
type Dialer func(cfg config.MQTTConfig, logger Logger) (Publisher, error)

// DialMQTT is the default Dialer. Broker disconnects are logged; paho
// reconnects on its own and restores the report subscriptions.
func DialMQTT(cfg config.MQTTConfig, logger Logger) (Publisher, error) {
	c, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, err
	}
	c.SetLogger(logger)
	c.SetOnDisconnect(func(err error) {
		logger.Warn("control channel lost", "client_id", cfg.Broker.ClientID, "error", err)
	})
	return c, nil
}

// Config holds what a Connector needs to open sessions.
type Config struct {
	Email      string
	Password   string
	BaseURL    string
	AppVersion string
	Timeout    time.Duration

	// MQTT is the control channel template. An empty Broker.Host disables
	// control operations. Empty Auth credentials are replaced by the account
	// email and the session token.
	MQTT config.MQTTConfig
}

// ConfigFrom builds a connector Config from the daemon configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Email:      cfg.Account.Email,
		Password:   cfg.Account.Password,
		BaseURL:    cfg.API.BaseURL,
		AppVersion: cfg.API.AppVersion,
		Timeout:    cfg.GetAPITimeout(),
		MQTT:       cfg.MQTT,
	}
}

// Connector signs in and opens a new Client on every Connect.
type Connector struct {
	cfg    Config
	http   *http.Client
	dial   Dialer
	logger Logger
}

var _ hws.Connector = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cn *Connector) {
		if c != nil {
			cn.http = c
		}
	}
}

// WithDialer replaces the MQTT dialer.
func WithDialer(d Dialer) Option {
	return func(cn *Connector) {
		if d != nil {
			cn.dial = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(cn *Connector) {
		if l != nil {
			cn.logger = l
		}
	}
}

// NewConnector creates a Connector.
func NewConnector(cfg Config, opts ...Option) *Connector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cn := &Connector{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		dial:   DialMQTT,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(cn)
	}
	return cn
}

// Connect signs in and, when a broker is configured, dials the control
// channel with the new token. Either failure fails the whole session.
func (cn *Connector) Connect(ctx context.Context) (hws.Client, error) {
	a := &api{baseURL: cn.cfg.BaseURL, http: cn.http}

	token, err := a.signIn(ctx, signInRequest{
		AppVersion:      cn.cfg.AppVersion,
		DeviceName:      deviceName,
		DeviceOSVersion: deviceOSVersion,
		Email:           cn.cfg.Email,
		Password:        cn.cfg.Password,
	})
	if err != nil {
		return nil, err
	}

	var pub Publisher
	if cn.cfg.MQTT.Broker.Host != "" {
		pub, err = cn.dial(cn.sessionMQTT(token), cn.logger)
		if err != nil {
			return nil, fmt.Errorf("control channel: %w", err)
		}
	} else {
		cn.logger.Debug("no mqtt broker configured, control commands disabled")
	}

	cn.logger.Info("signed in", "email", cn.cfg.Email, "control", pub != nil)
	return newClient(a, pub, cn.logger), nil
}

// sessionMQTT derives the per-session MQTT settings. Client ids must be
// unique per connection or the broker drops the previous session's link.
func (cn *Connector) sessionMQTT(token string) config.MQTTConfig {
	m := cn.cfg.MQTT
	if m.Auth.Username == "" {
		m.Auth.Username = cn.cfg.Email
		m.Auth.Password = token
	}
	prefix := m.Broker.ClientID
	if prefix == "" {
		prefix = deviceName
	}
	m.Broker.ClientID = prefix + "-" + uuid.NewString()[:8]
	return m
}
