// Package hws defines the device-side vocabulary shared by the daemon:
// the Device Client capability, the connector that authenticates one, and the
// status snapshot a heat pump reports.
//
// The daemon core (session, dispatch, policy) depends only on these
// interfaces. The concrete Emerald cloud client lives in package emerald.
package hws
