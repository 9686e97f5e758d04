// Package history stores request outcomes and status snapshots in SQLite.
//
// The daemon records every answered request in command_log and every
// successful status result in status_history; `emeraldhwsd history` reads
// them back. The schema lives in the migrations package.
package history
