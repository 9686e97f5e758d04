// Package policy wraps the dispatcher with the status retry rule and the
// process-level failure policy.
//
// Retry: only "status" is retried, once, with a forced session renewal, and
// only when the first attempt failed at the device. Control commands are
// never retried because repeating them is not known to be safe.
//
// Failure policy: under OnCommandErrorContinue every error is answered and
// the loop carries on. Under OnCommandErrorExit a device or session failure
// that survives the retry marks the outcome Fatal; the daemon answers and
// then stops so its supervisor restarts it with a fresh session.
package policy
