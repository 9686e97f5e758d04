// Package supervisor proxies protocol lines to a child daemon and answers
// for it when it is gone.
//
// Request ids are tracked in FIFO order as lines are forwarded. Each line
// the child writes answers the oldest pending request. When the child exits
// every pending request receives {"ok":false,"error":"daemon exited"}, and
// requests that arrive while no child is running receive "daemon not running".
//
// The child itself is run by process.Manager, which restarts it after any
// exit; wire the manager's OnStdoutLine and OnStop hooks to HandleResponse
// and HandleExit.
package supervisor
