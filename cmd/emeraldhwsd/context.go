package main

import (
	"os"
	"strings"
	"sync"

	"github.com/nerrad567/emerald-hwsd/internal/emerald"
	"github.com/nerrad567/emerald-hwsd/internal/hws"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/config"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/logging"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	config   string
	email    string
	password string
	logLevel string
}

// connectorFunc builds the Device Client connector for a configuration.
type connectorFunc func(cfg *config.Config, log *logging.Logger) hws.Connector

type commandContext struct {
	flags *globalFlags

	// connector is replaced in tests.
	connector connectorFunc

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{
		flags:     &globalFlags{},
		connector: emeraldConnector,
	}
}

// ensureConfig loads defaults, the config file and environment once, then
// applies the global flags. Validation is left to each command.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.flags.config)
		if path == "" {
			path = os.Getenv("EMERALD_CONFIG")
		}

		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}

		if c.flags.email != "" {
			cfg.Account.Email = c.flags.email
		}
		if c.flags.password != "" {
			cfg.Account.Password = c.flags.password
		}
		if c.flags.logLevel != "" {
			cfg.Logging.Level = c.flags.logLevel
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cfg *config.Config) *logging.Logger {
	return logging.New(cfg.Logging, version)
}

func emeraldConnector(cfg *config.Config, log *logging.Logger) hws.Connector {
	return emerald.NewConnector(
		emerald.ConfigFrom(cfg),
		emerald.WithLogger(log.With("component", "emerald")),
	)
}
