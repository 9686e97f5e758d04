package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/emerald-hwsd/internal/hws"
)

// Measurement names.
const (
	MeasurementStatus  = "hws_status"
	MeasurementCommand = "hws_command"
)

// statusFieldKeys maps last_state keys to hws_status field names.
var statusFieldKeys = []string{
	hws.StateKeyTempCurrent,
	hws.StateKeyTempSet,
	hws.StateKeySwitch,
	hws.StateKeyMode,
	hws.StateKeyWorkState,
}

// CommandPoint describes one answered request for WriteCommand.
type CommandPoint struct {
	Command  string
	DeviceID string
	OK       bool
	Attempts int
	Duration time.Duration
}

// WriteStatus writes the numeric last_state fields of a status result.
// Nothing is written when the status has no numeric fields.
func (c *Client) WriteStatus(deviceID string, st hws.Status) {
	fields := StatusFields(st)
	if len(fields) == 0 {
		return
	}

	c.writePoint(write.NewPoint(
		MeasurementStatus,
		map[string]string{"device_id": deviceID},
		fields,
		time.Now(),
	))
}

// WriteCommand writes one request outcome.
func (c *Client) WriteCommand(p CommandPoint) {
	c.writePoint(CommandPointFor(p, time.Now()))
}

// StatusFields extracts the hws_status fields from a status result.
func StatusFields(st hws.Status) map[string]interface{} {
	fields := make(map[string]interface{}, len(statusFieldKeys))
	for _, key := range statusFieldKeys {
		if v, ok := st.StateNumber(key); ok {
			fields[key] = v
		}
	}
	return fields
}

// CommandPointFor builds the hws_command point for p at ts.
func CommandPointFor(p CommandPoint, ts time.Time) *write.Point {
	tags := map[string]string{
		"command": p.Command,
		"ok":      strconv.FormatBool(p.OK),
	}
	if p.DeviceID != "" {
		tags["device_id"] = p.DeviceID
	}

	return write.NewPoint(
		MeasurementCommand,
		tags,
		map[string]interface{}{
			"attempts":    int64(p.Attempts),
			"duration_ms": p.Duration.Milliseconds(),
		},
		ts,
	)
}
