// Package dispatch maps protocol requests onto Device Client operations.
//
// The command table is fixed and case-sensitive:
//
//	discover   list devices with display names
//	status     full status snapshot of one device
//	set_mode   0 boost, 1 normal, 2 quiet
//	turn_on    switch a device on
//	turn_off   switch a device off
//
// Every failure is returned as an *Error carrying a Kind, so callers branch
// on the kind of failure rather than on message text.
package dispatch
