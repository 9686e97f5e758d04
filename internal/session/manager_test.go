package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/emerald-hwsd/internal/hws/hwstest"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingLogger captures warn messages.
type recordingLogger struct {
	noopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

var errSignIn = errors.New("sign-in rejected")

func TestStart(t *testing.T) {
	first := &hwstest.Client{Name: "first"}
	conn := &hwstest.Connector{Results: []hwstest.Result{{Client: first}}}
	mgr := NewManager(conn)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got, err := mgr.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got != first {
		t.Errorf("Acquire() returned %v, want first client", got)
	}
	if conn.Count() != 1 {
		t.Errorf("Connect called %d times, want 1", conn.Count())
	}
	if mgr.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", mgr.TTL(), DefaultTTL)
	}
}

func TestStart_Failure(t *testing.T) {
	conn := &hwstest.Connector{Results: []hwstest.Result{{Err: errSignIn}}}
	mgr := NewManager(conn)

	err := mgr.Start(context.Background())
	if !errors.Is(err, errSignIn) {
		t.Fatalf("Start() error = %v, want %v", err, errSignIn)
	}
	if mgr.Stats().Active {
		t.Error("Stats().Active = true after failed start")
	}
}

func TestAcquire_ReusesWithinTTL(t *testing.T) {
	clock := newFakeClock()
	first := &hwstest.Client{Name: "first"}
	conn := &hwstest.Connector{Results: []hwstest.Result{{Client: first}}}
	mgr := NewManager(conn, WithClock(clock.Now))

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Exactly at the TTL the session is still fresh
	clock.Advance(DefaultTTL)
	got, err := mgr.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got != first {
		t.Error("Acquire() renewed a session that had not exceeded its TTL")
	}
	if conn.Count() != 1 {
		t.Errorf("Connect called %d times, want 1", conn.Count())
	}
}

func TestAcquire_RenewsAfterTTL(t *testing.T) {
	clock := newFakeClock()
	first := &hwstest.Client{Name: "first"}
	second := &hwstest.Client{Name: "second"}
	conn := &hwstest.Connector{Results: []hwstest.Result{{Client: first}, {Client: second}}}
	mgr := NewManager(conn, WithClock(clock.Now))

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	clock.Advance(DefaultTTL + time.Second)
	got, err := mgr.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got != second {
		t.Error("Acquire() did not renew an expired session")
	}
	if !first.Closed() {
		t.Error("superseded session was not closed")
	}
	if second.Closed() {
		t.Error("live session was closed")
	}

	stats := mgr.Stats()
	if stats.Renewals != 1 {
		t.Errorf("Stats().Renewals = %d, want 1", stats.Renewals)
	}
	if !stats.CreatedAt.Equal(clock.Now()) {
		t.Errorf("Stats().CreatedAt = %v, want %v", stats.CreatedAt, clock.Now())
	}
}

func TestAcquire_Forced(t *testing.T) {
	first := &hwstest.Client{Name: "first"}
	second := &hwstest.Client{Name: "second"}
	conn := &hwstest.Connector{Results: []hwstest.Result{{Client: first}, {Client: second}}}
	mgr := NewManager(conn)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got, err := mgr.Acquire(context.Background(), true)
	if err != nil {
		t.Fatalf("Acquire(force) error = %v", err)
	}
	if got != second {
		t.Error("Acquire(force) did not create a new session")
	}
}

func TestAcquire_RenewalFailureKeepsPrevious(t *testing.T) {
	clock := newFakeClock()
	first := &hwstest.Client{Name: "first"}
	logger := &recordingLogger{}
	conn := &hwstest.Connector{Results: []hwstest.Result{{Client: first}, {Err: errSignIn}, {Err: errSignIn}}}
	mgr := NewManager(conn, WithClock(clock.Now), WithLogger(logger))

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	clock.Advance(DefaultTTL + time.Second)
	got, err := mgr.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("Acquire() error = %v, want previous handle", err)
	}
	if got != first {
		t.Error("Acquire() did not fall back to the previous handle")
	}
	if first.Closed() {
		t.Error("previous handle closed after failed renewal")
	}

	got, err = mgr.Acquire(context.Background(), true)
	if err != nil || got != first {
		t.Errorf("Acquire(force) = (%v, %v), want previous handle", got, err)
	}

	if logger.count() != 2 {
		t.Errorf("logged %d warnings, want 2", logger.count())
	}
	if mgr.Stats().Failures != 2 {
		t.Errorf("Stats().Failures = %d, want 2", mgr.Stats().Failures)
	}
}

func TestAcquire_NoSessionAndFailure(t *testing.T) {
	conn := &hwstest.Connector{Results: []hwstest.Result{{Err: errSignIn}}}
	mgr := NewManager(conn)

	got, err := mgr.Acquire(context.Background(), false)
	if got != nil {
		t.Errorf("Acquire() handle = %v, want nil", got)
	}
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("Acquire() error = %v, want ErrNoSession", err)
	}
	if !errors.Is(err, errSignIn) {
		t.Errorf("Acquire() error = %v, want wrapped cause", err)
	}
}

func TestAcquire_LazyStart(t *testing.T) {
	first := &hwstest.Client{Name: "first"}
	conn := &hwstest.Connector{Results: []hwstest.Result{{Client: first}}}
	mgr := NewManager(conn)

	got, err := mgr.Acquire(context.Background(), false)
	if err != nil || got != first {
		t.Fatalf("Acquire() = (%v, %v), want first client", got, err)
	}
	if mgr.Stats().Renewals != 0 {
		t.Errorf("Stats().Renewals = %d, want 0 for the first session", mgr.Stats().Renewals)
	}
}

func TestWithTTL(t *testing.T) {
	clock := newFakeClock()
	first := &hwstest.Client{Name: "first"}
	second := &hwstest.Client{Name: "second"}
	conn := &hwstest.Connector{Results: []hwstest.Result{{Client: first}, {Client: second}}}
	mgr := NewManager(conn, WithClock(clock.Now), WithTTL(time.Minute))

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	clock.Advance(61 * time.Second)

	got, _ := mgr.Acquire(context.Background(), false)
	if got != second {
		t.Error("custom TTL not honoured")
	}

	if NewManager(conn, WithTTL(0)).TTL() != DefaultTTL {
		t.Error("WithTTL(0) should keep the default")
	}
}

func TestClose(t *testing.T) {
	first := &hwstest.Client{Name: "first"}
	conn := &hwstest.Connector{Results: []hwstest.Result{{Client: first}}}
	mgr := NewManager(conn)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !first.Closed() {
		t.Error("Close() did not close the live handle")
	}
	if mgr.Stats().Active {
		t.Error("Stats().Active = true after Close")
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
