package monitor

import (
	"context"
	"sync"

	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/traffic"
)

// Status describes the manager's current session.
type Status struct {
	SessionID string
	State     State
	Err       error
	// Restarts counts sessions started after the first.
	Restarts int
}

// Manager owns the current Session and replaces it on an explicit
// Restart. It never restarts on its own. It is safe for concurrent use and
// implements SnapshotSource, so a Publisher keeps working across restarts.
type Manager struct {
	cfg  Config
	deps Deps

	// launchMu serializes Start, Restart and Stop so at most one tool is
	// ever launched and Stop always sees the session it must stop.
	launchMu sync.Mutex

	mu sync.Mutex
	// life bounds every session; it is the context of the first Start.
	life     context.Context
	current  *Session
	lastErr  error
	started  int
	starting bool
	final    traffic.Snapshot
}

// NewManager creates a manager. Nothing runs until Start.
func NewManager(cfg Config, deps Deps) *Manager {
	return &Manager{cfg: cfg, deps: deps.withDefaults()}
}

// Start launches a session unless one is already running. The first call's
// ctx bounds the lifetime of every session the manager starts.
func (m *Manager) Start(ctx context.Context) error {
	m.launchMu.Lock()
	defer m.launchMu.Unlock()
	return m.start(ctx)
}

func (m *Manager) start(ctx context.Context) error {
	m.mu.Lock()
	if m.life == nil {
		m.life = ctx
	}
	life := m.life
	if m.current != nil && !m.current.State().IsTerminal() {
		m.mu.Unlock()
		return nil
	}
	m.starting = true
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
		return errors.NewSpawnError(m.cfg.Command.Path, errors.Join(errors.ErrCanceled, err))
	}

	s, err := Start(life, m.cfg, m.deps)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.starting = false
	m.started++
	if err != nil {
		m.lastErr = err
		m.current = nil
		return err
	}
	m.lastErr = nil
	m.current = s
	return nil
}

// Restart stops the current session, if any, and starts a new one. ctx
// only gates the restart; the new session lives as long as the manager.
func (m *Manager) Restart(ctx context.Context) error {
	m.launchMu.Lock()
	defer m.launchMu.Unlock()

	m.mu.Lock()
	prev := m.current
	m.mu.Unlock()

	if prev != nil {
		_ = prev.Stop()
		m.rememberFinal(prev)
	}
	m.deps.Logger.Info("restarting monitoring session")
	return m.start(ctx)
}

func (m *Manager) rememberFinal(s *Session) {
	snap, err := s.Snapshot(context.Background())
	if err != nil {
		return
	}
	m.mu.Lock()
	m.final = snap
	m.mu.Unlock()
}

// Current returns the current session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Status reports on the current session. With no session, the state is
// StateFailed after a failed launch and StateStopped otherwise.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{Restarts: max(m.started-1, 0)}
	switch {
	case m.current != nil:
		st.SessionID = m.current.ID()
		st.State = m.current.State()
		st.Err = m.current.Err()
	case m.starting:
		st.State = StateStarting
	case m.lastErr != nil:
		st.State = StateFailed
		st.Err = m.lastErr
	default:
		st.State = StateStopped
	}
	return st
}

// ID returns the current session's ID.
func (m *Manager) ID() string { return m.Status().SessionID }

// State returns the current session's state.
func (m *Manager) State() State { return m.Status().State }

// Err returns the current session's terminal error.
func (m *Manager) Err() error { return m.Status().Err }

// Snapshot returns the current session's snapshot. Without a session it
// returns the last snapshot of the previous one.
func (m *Manager) Snapshot(ctx context.Context) (traffic.Snapshot, error) {
	s := m.Current()
	if s == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.final, nil
	}
	return s.Snapshot(ctx)
}

// ClearHistory clears the current session's history.
func (m *Manager) ClearHistory(ctx context.Context) error {
	s := m.Current()
	if s == nil {
		return errors.ErrSessionStopped
	}
	return s.ClearHistory(ctx)
}

// Stop stops the current session. A launch in progress finishes first and
// is then stopped.
func (m *Manager) Stop() error {
	m.launchMu.Lock()
	defer m.launchMu.Unlock()

	s := m.Current()
	if s == nil {
		return nil
	}
	return s.Stop()
}
