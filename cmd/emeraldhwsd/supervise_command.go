package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerrad567/emerald-hwsd/internal/process"
	"github.com/nerrad567/emerald-hwsd/internal/protocol"
	"github.com/nerrad567/emerald-hwsd/internal/supervisor"
)

// drainPoll is how often pending requests are checked at shutdown.
const drainPoll = 20 * time.Millisecond

// childSkipFlags are not passed to the child on its command line.
// Credentials travel in the environment instead of argv.
var childSkipFlags = map[string]bool{
	"restart-delay": true,
	"max-restarts":  true,
	"email":         true,
	"password":      true,
}

func newSuperviseCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var restartDelay time.Duration
	var maxRestarts int

	cmd := &cobra.Command{
		Use:   "supervise",
		Short: "Run the daemon as a child process and restart it after every exit",
		Long: `Start "emeraldhwsd run" as a child, proxy stdin lines to it and its
responses to stdout. The child is restarted after every exit; requests it
had not answered receive "daemon exited", requests arriving while it is
down receive "daemon not running".

Run flags are passed through to the child.`,
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
			if cmd.Flags().Changed("max-restarts") {
				cfg.Supervisor.MaxRestartAttempts = maxRestarts
			}

			log := ctx.logger(cfg)

			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locating executable: %w", err)
			}

			delay := cfg.GetRestartDelay()
			if cmd.Flags().Changed("restart-delay") {
				delay = restartDelay
			}

			sup := supervisor.New(protocol.NewWriter(cmd.OutOrStdout()))
			sup.SetLogger(log.With("component", "supervisor"))

			mgr := process.NewManager(process.Config{
				Name:               "emeraldhwsd",
				Binary:             exe,
				Args:               childArgs(cmd.Flags()),
				Env: []string{
					"EMERALD_EMAIL=" + cfg.Account.Email,
					"EMERALD_PASSWORD=" + cfg.Account.Password,
				},
				RestartOnExit:      true,
				RestartDelay:       delay,
				MaxRestartAttempts: cfg.Supervisor.MaxRestartAttempts,
				GracefulTimeout:    cfg.GetGracefulTimeout(),
				Stderr:             cmd.ErrOrStderr(),
				OnStdoutLine:       sup.HandleResponse,
				OnStop:             sup.HandleExit,
				OnRestart: func(attempt int) {
					log.Info("restarting daemon", "attempt", attempt, "delay", delay)
				},
			})
			mgr.SetLogger(log.With("component", "process"))
			sup.Attach(mgr)

			runCtx := cmd.Context()
			if err := mgr.Start(runCtx); err != nil {
				return fmt.Errorf("starting daemon: %w", err)
			}
			defer func() {
				if stopErr := mgr.Stop(); stopErr != nil {
					log.Error("error stopping daemon", "error", stopErr)
				}
			}()

			in := cmd.InOrStdin()
			if closer, ok := in.(io.Closer); ok {
				stop := context.AfterFunc(runCtx, func() { closer.Close() }) //nolint:errcheck // shutting down
				defer stop()
			}

			err = sup.Run(runCtx, protocol.NewReader(in))
			if err != nil && !errors.Is(err, context.Canceled) && runCtx.Err() == nil {
				return err
			}

			// Let the child answer what it already has before stopping it.
			waitForDrain(runCtx, sup, cfg.GetGracefulTimeout())

			stats := sup.Stats()
			log.Info("supervisor stopped",
				"forwarded", stats.Forwarded,
				"answered", stats.Answered,
				"exited", stats.Exited,
				"rejected", stats.Rejected,
				"restarts", mgr.RestartCount(),
			)
			return nil
		},
	}

	addRunFlags(cmd, &flags)
	cmd.Flags().DurationVar(&restartDelay, "restart-delay", 2*time.Second, "Delay before restarting the daemon")
	cmd.Flags().IntVar(&maxRestarts, "max-restarts", 0, "Give up after this many restarts (0 = unlimited)")
	return cmd
}

// childArgs rebuilds the `run` command line from the flags the user set.
func childArgs(flags *pflag.FlagSet) []string {
	args := []string{"run"}
	flags.Visit(func(f *pflag.Flag) {
		if childSkipFlags[f.Name] {
			return
		}
		args = append(args, "--"+f.Name+"="+f.Value.String())
	})
	return args
}

// waitForDrain returns once nothing is pending, the timeout passes or ctx ends.
func waitForDrain(ctx context.Context, sup *supervisor.Supervisor, timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for sup.Pending() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-ticker.C:
		}
	}
}
