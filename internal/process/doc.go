// Package process manages a long-running child process that speaks a
// line-oriented protocol on its standard streams.
//
// It is used by `emeraldhwsd supervise` to run the request daemon as a child.
//
// Features:
//   - Start/stop with graceful shutdown (SIGTERM, then SIGKILL)
//   - Automatic restart after any exit, with a fixed delay
//   - Line writes to the child's stdin
//   - Line-by-line delivery of the child's stdout
//   - Context-based cancellation for clean shutdown
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:          "emeraldhwsd",
//	    Binary:        os.Args[0],
//	    Args:          []string{"run"},
//	    RestartOnExit: true,
//	    RestartDelay:  2 * time.Second,
//	    OnStdoutLine:  func(line []byte) { os.Stdout.Write(line) },
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop()
//
//	mgr.WriteLine([]byte(`{"id":1,"cmd":"discover"}`))
package process
