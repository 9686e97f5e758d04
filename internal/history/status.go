package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/emerald-hwsd/internal/hws"
)

// StatusEntry is one stored status snapshot.
type StatusEntry struct {
	ID        int64      `json:"id"`
	DeviceID  string     `json:"hws_id"`
	Status    hws.Status `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// RecordStatus stores a status snapshot for a device.
func (r *SQLiteRepository) RecordStatus(ctx context.Context, deviceID string, st hws.Status) error {
	if deviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if st == nil {
		st = hws.Status{}
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO status_history (device_id, snapshot, created_at) VALUES (?, ?, ?)",
		deviceID,
		string(data),
		r.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting status history: %w", err)
	}
	return nil
}

// GetStatusHistory returns recent snapshots for a device, newest first.
// An empty deviceID returns snapshots for every device.
func (r *SQLiteRepository) GetStatusHistory(ctx context.Context, deviceID string, limit int) ([]StatusEntry, error) {
	limit = clampLimit(limit)

	query := `SELECT id, device_id, snapshot, created_at FROM status_history`
	args := []any{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	entries := make([]StatusEntry, 0, limit)
	for rows.Next() {
		var e StatusEntry
		var snapshot string
		var createdAt int64

		if err := rows.Scan(&e.ID, &e.DeviceID, &snapshot, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning status history: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &e.Status); err != nil {
			return nil, fmt.Errorf("unmarshalling status: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status history: %w", err)
	}

	return entries, nil
}
