package influxdb_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/emerald-hwsd/internal/hws"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/config"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "emerald-dev-token",
		Org:           "home",
		Bucket:        "hws",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := influxdb.Connect(context.Background(), testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

func sampleStatus() hws.Status {
	return hws.Status{
		"id": "hws-1",
		"last_state": map[string]any{
			hws.StateKeyTempCurrent: 58.5,
			hws.StateKeyTempSet:     "60",
			hws.StateKeySwitch:      1,
			hws.StateKeyMode:        1,
			hws.StateKeyWorkState:   0,
			"fault":                 "none",
		},
	}
}

// =============================================================================
// Point construction
// =============================================================================

func TestStatusFields(t *testing.T) {
	fields := influxdb.StatusFields(sampleStatus())

	want := map[string]float64{
		hws.StateKeyTempCurrent: 58.5,
		hws.StateKeyTempSet:     60,
		hws.StateKeySwitch:      1,
		hws.StateKeyMode:        1,
		hws.StateKeyWorkState:   0,
	}
	if len(fields) != len(want) {
		t.Fatalf("StatusFields() = %v, want %d fields", fields, len(want))
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("StatusFields()[%q] = %v, want %v", k, fields[k], v)
		}
	}
	if _, ok := fields["fault"]; ok {
		t.Error("StatusFields() included non-numeric key")
	}
}

func TestStatusFields_Empty(t *testing.T) {
	if got := influxdb.StatusFields(hws.Status{}); len(got) != 0 {
		t.Errorf("StatusFields(empty) = %v, want none", got)
	}
	if got := influxdb.StatusFields(nil); len(got) != 0 {
		t.Errorf("StatusFields(nil) = %v, want none", got)
	}
}

func TestCommandPointFor(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	p := influxdb.CommandPointFor(influxdb.CommandPoint{
		Command:  "status",
		DeviceID: "hws-1",
		OK:       false,
		Attempts: 2,
		Duration: 250 * time.Millisecond,
	}, ts)

	if p.Name() != influxdb.MeasurementCommand {
		t.Errorf("Name() = %q, want %q", p.Name(), influxdb.MeasurementCommand)
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["command"] != "status" || tags["ok"] != "false" || tags["device_id"] != "hws-1" {
		t.Errorf("tags = %v", tags)
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["attempts"] != int64(2) {
		t.Errorf("attempts = %v, want 2", fields["attempts"])
	}
	if fields["duration_ms"] != int64(250) {
		t.Errorf("duration_ms = %v, want 250", fields["duration_ms"])
	}
}

func TestCommandPointFor_NoDevice(t *testing.T) {
	p := influxdb.CommandPointFor(influxdb.CommandPoint{Command: "discover", OK: true, Attempts: 1}, time.Now())
	for _, tag := range p.TagList() {
		if tag.Key == "device_id" {
			t.Errorf("device_id tag present for discover: %q", tag.Value)
		}
	}
}

func TestWrite_NotConnectedIsNoop(t *testing.T) {
	client := &influxdb.Client{}

	// Must not touch the nil write API
	client.WriteStatus("hws-1", sampleStatus())
	client.WriteCommand(influxdb.CommandPoint{Command: "status"})
	client.Flush()

	if got := client.Written(); got != 0 {
		t.Errorf("Written() = %d, want 0", got)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true for zero client")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Non-existent port

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteStatusAndCommand(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteStatus("test-hws-1", sampleStatus())
	client.WriteCommand(influxdb.CommandPoint{Command: "status", DeviceID: "test-hws-1", OK: true, Attempts: 1})
	client.Flush()

	if got := client.Written(); got != 2 {
		t.Errorf("Written() = %d, want 2", got)
	}

	// Give a moment for error callback
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("Write error = %v", writeErr)
	}
}

func TestClose(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	client.WriteCommand(influxdb.CommandPoint{Command: "discover", OK: true, Attempts: 1})

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
