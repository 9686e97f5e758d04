package main

import (
	"context"
	"fmt"

	_ "github.com/nerrad567/emerald-hwsd/migrations"

	"github.com/nerrad567/emerald-hwsd/internal/daemon"
	"github.com/nerrad567/emerald-hwsd/internal/dispatch"
	"github.com/nerrad567/emerald-hwsd/internal/history"
	"github.com/nerrad567/emerald-hwsd/internal/hws"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/config"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/database"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/influxdb"
	"github.com/nerrad567/emerald-hwsd/internal/infrastructure/logging"
)

// openObservers connects the optional history and telemetry sinks.
// The returned func closes whatever was opened.
func openObservers(ctx context.Context, cfg *config.Config, log *logging.Logger) ([]daemon.Observer, func(), error) {
	var observers []daemon.Observer
	var closers []func()

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Database.Enabled {
		db, err := openHistoryDB(cfg.Database)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		})
		log.Info("history enabled", "path", db.Path())
		observers = append(observers, historyObserver(history.NewSQLiteRepository(db.DB)))
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		closers = append(closers, func() {
			log.Info("closing InfluxDB connection", "points_written", influxClient.Written())
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		observers = append(observers, telemetryObserver(influxClient))
	}

	return observers, closeAll, nil
}

// openHistoryDB opens the SQLite store and applies migrations.
func openHistoryDB(cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// historyRecorder is the part of history.SQLiteRepository the observer uses.
type historyRecorder interface {
	RecordCommand(ctx context.Context, c *history.Command) error
	RecordStatus(ctx context.Context, deviceID string, st hws.Status) error
}

// historyObserver stores every outcome, plus the snapshot of successful
// status reads.
func historyObserver(repo historyRecorder) daemon.Observer {
	return daemon.ObserverFunc(func(ctx context.Context, o daemon.Observation) error {
		if err := repo.RecordCommand(ctx, commandRecord(o)); err != nil {
			return err
		}
		if st, ok := statusResult(o); ok {
			return repo.RecordStatus(ctx, o.Request.DeviceID, st)
		}
		return nil
	})
}

// telemetryWriter is the part of influxdb.Client the observer uses.
type telemetryWriter interface {
	WriteCommand(p influxdb.CommandPoint)
	WriteStatus(deviceID string, st hws.Status)
}

// telemetryObserver writes a hws_command point per request and a hws_status
// point per successful status read.
func telemetryObserver(w telemetryWriter) daemon.Observer {
	return daemon.ObserverFunc(func(_ context.Context, o daemon.Observation) error {
		w.WriteCommand(influxdb.CommandPoint{
			Command:  o.Request.Cmd,
			DeviceID: o.Request.DeviceID,
			OK:       o.Outcome.Err == nil,
			Attempts: o.Outcome.Attempts,
			Duration: o.Outcome.Duration,
		})
		if st, ok := statusResult(o); ok {
			w.WriteStatus(o.Request.DeviceID, st)
		}
		return nil
	})
}

func commandRecord(o daemon.Observation) *history.Command {
	c := &history.Command{
		RequestID: string(o.Request.ID),
		Command:   o.Request.Cmd,
		DeviceID:  o.Request.DeviceID,
		OK:        o.Outcome.Err == nil,
		Attempts:  o.Outcome.Attempts,
		Renewed:   o.Outcome.Renewed,
		Duration:  o.Outcome.Duration,
		CreatedAt: o.At.UTC(),
	}
	if o.Outcome.Err != nil {
		c.Error = o.Outcome.Err.Error()
		c.ErrorKind = string(o.Outcome.Kind)
	}
	return c
}

func statusResult(o daemon.Observation) (hws.Status, bool) {
	if o.Request.Cmd != dispatch.CmdStatus || o.Outcome.Err != nil || o.Request.DeviceID == "" {
		return nil, false
	}
	st, ok := o.Outcome.Result.(hws.Status)
	return st, ok && st != nil
}
