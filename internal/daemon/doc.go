// Package daemon runs the request/response loop.
//
// The loop is strictly sequential: a request is read, executed through the
// policy, answered, and shown to the observers before the next line is read.
// It stops on end of input, a fatal outcome, a scheduled restart or context
// cancellation, and reports which one through StopReason.
package daemon
