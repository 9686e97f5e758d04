package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Command is one answered protocol request.
type Command struct {
	ID        string        `json:"id"`
	RequestID string        `json:"request_id,omitempty"`
	Command   string        `json:"command"`
	DeviceID  string        `json:"hws_id,omitempty"`
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Attempts  int           `json:"attempts"`
	Renewed   bool          `json:"renewed"`
	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// Filter controls which commands List returns.
type Filter struct {
	Command  string // optional: exact command name
	DeviceID string // optional: exact hws_id
	Failed   bool   // only failed commands
	Limit    int    // default 50, max 500
	Offset   int
}

// ListResult is a page of commands, newest first.
type ListResult struct {
	Commands []Command `json:"commands"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// SQLiteRepository reads and writes the history tables.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// RecordCommand inserts a command. ID and CreatedAt are generated when empty.
func (r *SQLiteRepository) RecordCommand(ctx context.Context, c *Command) error {
	if c.Command == "" {
		c.Command = "?"
	}
	if c.ID == "" {
		c.ID = "cmd-" + uuid.NewString()[:8]
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log
		 (id, request_id, command, device_id, ok, error, error_kind, attempts, renewed, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		nullableString(c.RequestID),
		c.Command,
		nullableString(c.DeviceID),
		boolInt(c.OK),
		nullableString(c.Error),
		nullableString(c.ErrorKind),
		c.Attempts,
		boolInt(c.Renewed),
		c.Duration.Milliseconds(),
		c.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}
	return nil
}

// ListCommands returns commands matching the filter, newest first.
func (r *SQLiteRepository) ListCommands(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Failed {
		conditions = append(conditions, "ok = 0")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_log %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, request_id, command, device_id, ok, error, error_kind, attempts, renewed, duration_ms, created_at
		 FROM command_log %s ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	commands := []Command{}
	for rows.Next() {
		var c Command
		var requestID, deviceID, errMsg, errKind sql.NullString
		var ok, renewed int
		var durationMS, createdAt int64

		if err := rows.Scan(&c.ID, &requestID, &c.Command, &deviceID, &ok, &errMsg, &errKind,
			&c.Attempts, &renewed, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}

		c.RequestID = requestID.String
		c.DeviceID = deviceID.String
		c.Error = errMsg.String
		c.ErrorKind = errKind.String
		c.OK = ok != 0
		c.Renewed = renewed != 0
		c.Duration = time.Duration(durationMS) * time.Millisecond
		c.CreatedAt = time.UnixMilli(createdAt).UTC()

		commands = append(commands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return &ListResult{
		Commands: commands,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

// Prune deletes commands and snapshots older than olderThan.
//
// Returns the number of rows deleted across both tables.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := r.now().Add(-olderThan).UnixMilli()

	var deleted int64
	for _, table := range []string{"command_log", "status_history"} {
		res, err := r.db.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE created_at < ?", //nolint:gosec // table name is a constant
			cutoff,
		)
		if err != nil {
			return deleted, fmt.Errorf("pruning %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("pruning %s: %w", table, err)
		}
		deleted += n
	}
	return deleted, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// nullableString returns nil for empty strings so nullable TEXT columns stay NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
