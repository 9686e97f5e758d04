// emeraldhwsd - Emerald heat-pump hot water system daemon
//
// emeraldhwsd speaks newline-delimited JSON on stdin/stdout: one request per
// line in, one response per line out. It keeps a single authenticated cloud
// session alive, renews it on a TTL, retries status reads once with a fresh
// session and, under the exit policy, stops after a device failure so a
// supervisor can restart it clean.
//
// Subcommands:
//   - run:       the request daemon
//   - supervise: run the daemon as a child and restart it after every exit
//   - discover, status, set: one-shot commands printing a JSON summary
//   - history:   read the SQLite command log and status snapshots
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancels on Ctrl+C and SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)
	cancel()

	os.Exit(exitCode(err))
}

// exitCode reports err (unless already reported) and maps it to a status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.reported && ee.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}

	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return 1
}

// exitError carries a specific process exit status out of a command.
type exitError struct {
	code int
	err  error

	// reported is set when the command already wrote its own diagnostic.
	reported bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}
