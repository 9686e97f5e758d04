// Package session owns the single authenticated Device Client session.
//
// A Manager holds at most one live hws.Client. Acquire renews it when it is
// older than the configured TTL or when the caller forces renewal; a failed
// renewal keeps serving the previous handle so a flaky sign-in endpoint does
// not take down commands that could still succeed.
//
// Usage:
//
//	mgr := session.NewManager(connector, session.WithTTL(10*time.Minute))
//	if err := mgr.Start(ctx); err != nil {
//	    return err // initial authentication is fatal
//	}
//	client, err := mgr.Acquire(ctx, false)
package session
