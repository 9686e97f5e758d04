package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/emerald-hwsd/internal/daemon"
	"github.com/nerrad567/emerald-hwsd/internal/dispatch"
	"github.com/nerrad567/emerald-hwsd/internal/hws"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/config"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/logging"
	"github.com/nerrad567/emerald-hwsd/internal/policy"
	"github.com/nerrad567/emerald-hwsd/internal/protocol"
	"github.com/nerrad567/emerald-hwsd/internal/session"
)

// runFlags override daemon settings for `run` and are passed through by
// `supervise`.
type runFlags struct {
	onCommandError string
	restartAfter   int
	ttl            int
	mqttHost       string
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.onCommandError, "on-command-error", "", "Failure policy: continue or exit")
	cmd.Flags().IntVar(&f.restartAfter, "restart-after", 0, "Stop after this many seconds of uptime (0 disables)")
	cmd.Flags().IntVar(&f.ttl, "ttl", 0, "Session time-to-live in seconds")
	cmd.Flags().StringVar(&f.mqttHost, "mqtt-host", "", "MQTT broker host for device control")
}

// apply copies flags the user set onto cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("on-command-error") {
		cfg.Daemon.OnCommandError = f.onCommandError
	}
	if cmd.Flags().Changed("restart-after") {
		cfg.Daemon.RestartAfterSeconds = f.restartAfter
	}
	if cmd.Flags().Changed("ttl") {
		cfg.Session.TTLSeconds = f.ttl
	}
	if cmd.Flags().Changed("mqtt-host") {
		cfg.MQTT.Broker.Host = f.mqttHost
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve JSON requests on stdin/stdout",
		Long: `Serve newline-delimited JSON requests on stdin and write one response per
line to stdout. Logs go to stderr.

Requests: {"id": any, "cmd": "discover"|"status"|"set_mode"|"turn_on"|"turn_off",
"hws_id": string, "mode": 0|1|2}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := ctx.logger(cfg)
			log.Info("starting emeraldhwsd",
				"version", version,
				"commit", commit,
				"build_date", date,
			)

			observers, closeObservers, err := openObservers(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeObservers()

			in := cmd.InOrStdin()
			if closer, ok := in.(io.Closer); ok {
				// Unblocks a pending read on SIGINT/SIGTERM
				stop := context.AfterFunc(cmd.Context(), func() { closer.Close() }) //nolint:errcheck // shutting down
				defer stop()
			}

			reason, err := runDaemon(cmd.Context(), cfg, daemonDeps{
				connector: ctx.connector(cfg, log),
				in:        in,
				out:       cmd.OutOrStdout(),
				logger:    log,
				observers: observers,
			})
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			if code := reason.ExitCode(); code != 0 {
				return &exitError{code: code, err: fmt.Errorf("daemon stopped: %s", reason)}
			}
			return nil
		},
	}

	addRunFlags(cmd, &flags)
	return cmd
}

// daemonDeps are the collaborators runDaemon wires together.
type daemonDeps struct {
	connector hws.Connector
	in        io.Reader
	out       io.Writer
	logger    *logging.Logger
	observers []daemon.Observer
}

// runDaemon authenticates, then serves requests until the loop stops.
//
// An initial authentication failure is returned as an error; every later
// failure is contained by the policy and reported per request.
func runDaemon(ctx context.Context, cfg *config.Config, deps daemonDeps) (daemon.StopReason, error) {
	log := deps.logger
	if log == nil {
		log = logging.Default()
	}

	onError, err := policy.ParseOnCommandError(cfg.Daemon.OnCommandError)
	if err != nil {
		return "", err
	}

	sessions := session.NewManager(deps.connector,
		session.WithTTL(cfg.Session.TTL()),
		session.WithLogger(log.With("component", "session")),
	)
	if err := sessions.Start(ctx); err != nil {
		return "", err
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			log.Debug("closing session", "error", closeErr)
		}
	}()

	pol := policy.New(dispatch.New(sessions), onError)
	pol.SetLogger(log.With("component", "policy"))

	d := daemon.New(
		protocol.NewReader(deps.in),
		protocol.NewWriter(deps.out),
		pol,
		daemon.Config{RestartAfter: cfg.Daemon.RestartAfter()},
	)
	d.SetLogger(log.With("component", "daemon"))
	for _, o := range deps.observers {
		d.AddObserver(o)
	}

	reason, err := d.Run(ctx)

	stats := d.Stats()
	sessionStats := sessions.Stats()
	log.Info("emeraldhwsd stopped",
		"reason", reason,
		"requests", stats.Requests,
		"failures", stats.Failures,
		"retries", stats.Retries,
		"session_renewals", sessionStats.Renewals,
		"session_failures", sessionStats.Failures,
	)

	return reason, err
}
