// Package influxdb writes heater telemetry to InfluxDB 2.x.
//
// It wraps the official influxdb-client-go v2 library. Two measurements are
// written:
//   - hws_status: one point per successful status result, tagged by device
//   - hws_command: one point per answered protocol request
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteStatus("hws-1", status)
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval). Async
// write failures are delivered to the SetOnError callback; connection and
// health check errors are returned directly.
package influxdb
