package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Failure policies accepted by daemon.on_command_error.
const (
	OnCommandErrorContinue = "continue"
	OnCommandErrorExit     = "exit"
)

// Config is the root configuration structure for emeraldhwsd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Account    AccountConfig    `yaml:"account"`
	API        APIConfig        `yaml:"api"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Session    SessionConfig    `yaml:"session"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AccountConfig holds the Emerald cloud account credentials.
type AccountConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// APIConfig contains Emerald REST API settings.
type APIConfig struct {
	BaseURL    string `yaml:"base_url"`
	Timeout    int    `yaml:"timeout"` // seconds
	AppVersion string `yaml:"app_version"`
}

// MQTTConfig contains MQTT broker connection settings for the device control channel.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
// An empty Host disables the control channel; read-only commands keep working.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
// When empty, the Emerald connector uses the account email and session token.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// SessionConfig controls the authenticated session lifetime.
type SessionConfig struct {
	// TTLSeconds is how long a session is reused before it is renewed.
	// The cloud token usually lives 10-15 minutes.
	TTLSeconds int `yaml:"ttl"`
}

// TTL returns the session time-to-live as a Duration.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// DaemonConfig contains request loop settings.
type DaemonConfig struct {
	// OnCommandError is "continue" (recover in place) or "exit" (fail fast and
	// let the supervisor restart the process with a fresh session).
	OnCommandError string `yaml:"on_command_error"`

	// RestartAfterSeconds stops the loop once the process has been up this long.
	// 0 disables the scheduled restart.
	RestartAfterSeconds int `yaml:"restart_after"`
}

// RestartAfter returns the scheduled restart window as a Duration.
func (d DaemonConfig) RestartAfter() time.Duration {
	return time.Duration(d.RestartAfterSeconds) * time.Second
}

// SupervisorConfig contains settings for `emeraldhwsd supervise`.
type SupervisorConfig struct {
	RestartDelay       int `yaml:"restart_delay"`        // seconds
	MaxRestartAttempts int `yaml:"max_restart_attempts"` // 0 = unlimited
	GracefulTimeout    int `yaml:"graceful_timeout"`     // seconds
}

// DatabaseConfig contains SQLite history settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Validation is left to the caller so command-line flags can be applied
// first; call Validate before using the result.
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for none
//
// Returns:
//   - *Config: Loaded configuration
//   - error: If the file cannot be read or parsed
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "https://api.emerald-ems.com.au/api/v1",
			Timeout:    15,
			AppVersion: "2.5.3",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "",
				Port:     8883,
				TLS:      true,
				ClientID: "emeraldhwsd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Session: SessionConfig{
			TTLSeconds: 600,
		},
		Daemon: DaemonConfig{
			OnCommandError: OnCommandErrorContinue,
		},
		Supervisor: SupervisorConfig{
			RestartDelay:    2,
			GracefulTimeout: 5,
		},
		Database: DatabaseConfig{
			Path:        "./data/emeraldhwsd.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: EMERALD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Account
	if v := os.Getenv("EMERALD_EMAIL"); v != "" {
		cfg.Account.Email = v
	}
	if v := os.Getenv("EMERALD_PASSWORD"); v != "" {
		cfg.Account.Password = v
	}

	// API / MQTT
	if v := os.Getenv("EMERALD_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("EMERALD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}

	// Daemon
	if v := os.Getenv("EMERALD_ON_COMMAND_ERROR"); v != "" {
		cfg.Daemon.OnCommandError = strings.ToLower(v)
	}

	// History and telemetry
	if v := os.Getenv("EMERALD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("EMERALD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("EMERALD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Account.Email == "" {
		errs = append(errs, "account.email is required (set EMERALD_EMAIL or --email)")
	}
	if c.Account.Password == "" {
		errs = append(errs, "account.password is required (set EMERALD_PASSWORD or --password)")
	}

	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Session.TTLSeconds <= 0 {
		errs = append(errs, "session.ttl must be positive")
	}

	switch c.Daemon.OnCommandError {
	case OnCommandErrorContinue, OnCommandErrorExit:
	default:
		errs = append(errs, fmt.Sprintf("daemon.on_command_error must be %q or %q", OnCommandErrorContinue, OnCommandErrorExit))
	}
	if c.Daemon.RestartAfterSeconds < 0 {
		errs = append(errs, "daemon.restart_after cannot be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	// stdout carries protocol responses
	if strings.EqualFold(c.Logging.Output, "stdout") {
		errs = append(errs, "logging.output cannot be stdout (reserved for protocol responses)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetAPITimeout returns the REST API timeout as a Duration.
func (c *Config) GetAPITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

// GetRestartDelay returns the supervisor restart delay as a Duration.
func (c *Config) GetRestartDelay() time.Duration {
	return time.Duration(c.Supervisor.RestartDelay) * time.Second
}

// GetGracefulTimeout returns the supervisor graceful stop timeout as a Duration.
func (c *Config) GetGracefulTimeout() time.Duration {
	return time.Duration(c.Supervisor.GracefulTimeout) * time.Second
}
