package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/emerald-hwsd/internal/hws"
)

// DefaultTTL is how long a session is reused before Acquire renews it.
const DefaultTTL = 600 * time.Second

// ErrNoSession is returned when no session exists and authentication failed.
var ErrNoSession = errors.New("no authenticated session")

// Logger defines the logging interface for the session manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session time-to-live. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Stats is a point-in-time view of the session.
type Stats struct {
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	Renewals  int       `json:"renewals"`
	Failures  int       `json:"failures"`
}

// Manager owns the live session.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Renewal is serialised, so two
//     concurrent Acquire calls never authenticate twice for the same expiry.
type Manager struct {
	connector hws.Connector
	ttl       time.Duration
	now       func() time.Time
	logger    Logger

	mu        sync.Mutex
	handle    hws.Client
	createdAt time.Time
	renewals  int
	failures  int
}

// NewManager creates a Manager that authenticates through connector.
func NewManager(connector hws.Connector, opts ...Option) *Manager {
	m := &Manager{
		connector: connector,
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start performs the initial authentication. Its failure is fatal to the
// daemon: there is no previous handle to fall back on.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, err := m.connector.Connect(ctx)
	if err != nil {
		m.failures++
		return fmt.Errorf("initial authentication: %w", err)
	}
	m.install(client)
	m.logger.Info("session started", "ttl", m.ttl)
	return nil
}

// Acquire returns a usable client handle.
//
// A new session is created when force is set, when there is no session yet,
// or when the current one is older than the TTL. If that authentication fails
// the previous handle is returned unchanged and the failure is only logged;
// an error is returned only when there is no previous handle at all.
func (m *Manager) Acquire(ctx context.Context, force bool) (hws.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.needsRenewal(force) {
		return m.handle, nil
	}

	client, err := m.connector.Connect(ctx)
	if err != nil {
		m.failures++
		if m.handle == nil {
			return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
		}
		m.logger.Warn("session renewal failed, keeping previous session",
			"error", err,
			"forced", force,
			"age", m.now().Sub(m.createdAt),
		)
		return m.handle, nil
	}

	renewed := m.handle != nil
	m.install(client)
	if renewed {
		m.renewals++
		m.logger.Info("session renewed", "forced", force)
	} else {
		m.logger.Info("session started", "ttl", m.ttl)
	}
	return client, nil
}

// needsRenewal must be called with mu held.
func (m *Manager) needsRenewal(force bool) bool {
	if force || m.handle == nil {
		return true
	}
	return m.now().Sub(m.createdAt) > m.ttl
}

// install replaces the live handle and closes the one it supersedes.
// Must be called with mu held.
func (m *Manager) install(client hws.Client) {
	old := m.handle
	m.handle = client
	m.createdAt = m.now()

	if old != nil && old != client {
		if err := old.Close(); err != nil {
			m.logger.Debug("closing superseded session", "error", err)
		}
	}
}

// TTL returns the configured time-to-live.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Stats returns the current session statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		Active:    m.handle != nil,
		CreatedAt: m.createdAt,
		Renewals:  m.renewals,
		Failures:  m.failures,
	}
}

// Close releases the live session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return nil
	}
	err := m.handle.Close()
	m.handle = nil
	return err
}
